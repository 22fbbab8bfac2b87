/*
go-ssdlite provides the post processing pipeline for SSD (Single Shot MultiBox
Detector) style object detection models in pure Go.

The root package describes the raw output tensors produced by an inference
runtime, in float32, float16 or affine quantized int8, and converts them to
float32 for the post processors.  The remaining packages are:

  - box: corner and center form bounding boxes and IoU
  - dboxes: default (anchor) box generation from feature map geometry
  - postprocess: the box encoder, decoder, non-maximum suppression and the
    SSD post processor combining them
  - postprocess/result: detection results handed to callers
  - preprocess: letterbox geometry for mapping detections back to the source
    image

See the tests in each package for usage.
*/
package ssdlite
