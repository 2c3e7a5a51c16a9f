package service

import (
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/gabriel-vasile/mimetype"

	"instafeed/internal/apperr"
)

// checkImage sniffs data and returns its content type. Anything that is
// not an image, or is empty or over maxSize bytes, is a validation error.
func checkImage(data []byte, maxSize int64) (string, error) {
	if len(data) == 0 {
		return "", apperr.Validation("image is required")
	}
	if maxSize > 0 && int64(len(data)) > maxSize {
		return "", apperr.Validation("image is %s, the limit is %s",
			humanize.IBytes(uint64(len(data))), humanize.IBytes(uint64(maxSize)))
	}

	mtype := mimetype.Detect(data)
	if !strings.HasPrefix(mtype.String(), "image/") {
		return "", apperr.Validation("file is %s, not an image", mtype.String())
	}

	return mtype.String(), nil
}
