// Package backend defines the Media Backend interface the conversion engine
// delegates codec work to, plus a local implementation.
//
// The engine treats every backend call as a fallible, context-aware
// operation. It never depends on the backend's internal format or
// algorithm; converters only see success or a typed failure with a
// human-readable reason.
//
// The local backend shells out to ffmpeg/ffprobe for audio and video,
// pdftoppm/pdfinfo for documents, and handles still images in-process
// through imaging (with an optional libvips fast path). All tools are
// looked up on PATH at construction; operations whose tool is missing fail
// with a clear error instead of failing at startup.
package backend
