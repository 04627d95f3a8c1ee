package core

import (
	"fmt"
	"strings"
)

// StoragePath builds the blob key for a document version: {source}/{tenantId}/{slug}-v{n}.{ext}
func StoragePath(source, tenantID, slug string, version int, ext string) string {
	ext = strings.TrimPrefix(ext, ".")
	if ext == "" {
		ext = "txt"
	}
	if version < 1 {
		version = 1
	}
	return fmt.Sprintf("%s/%s/%s-v%d.%s", source, tenantID, slug, version, ext)
}
