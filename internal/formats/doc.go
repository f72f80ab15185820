// Package formats encodes the dataset model into the file layouts of the
// supported dataset conventions: Ultralytics YOLO, Darknet, COCO JSON, Pascal
// VOC XML and CreateML.
//
// Each convention is an Encoder that decides where an image lives in the
// archive, renders an optional per-image label file and renders the shared
// documents for the whole dataset. Encoders are pure and run concurrently
// from the conversion pipeline's worker pool.
package formats
