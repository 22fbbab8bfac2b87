/*
Package box holds the axis aligned bounding box types shared by the default
box generator, the encoder and decoder, and non-maximum suppression.

Boxes are normalized to [0,1] relative to the image dimensions and come in
two interchangeable forms: Corner (left, top, right, bottom) and Center
(center x, center y, width, height).  Conversion between the two is a pure
affine transform in either direction.
*/
package box
