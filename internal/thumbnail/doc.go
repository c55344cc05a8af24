// Package thumbnail turns an uploaded raster image into the fixed-size
// derived artifact shown next to a task: it reads the raw blob from the
// attachment store, decodes it, scales it to exactly Width×Height pixels
// (the source aspect ratio is not preserved), encodes it as JPEG and writes
// it to the derived-artifact store under the same key plus ".jpeg".
package thumbnail
