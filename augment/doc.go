/*
Package augment applies the box side of SSD training augmentation to ground
truth before it is handed to the Encoder.

Crop samples a random window of the image in the manner of the SSD paper and
re-expresses the surviving ground truth relative to that window.  Flip mirrors
ground truth horizontally.  Pixel data is not touched, callers crop or mirror
the image with the returned window themselves.
*/
package augment
