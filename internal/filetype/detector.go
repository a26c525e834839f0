package filetype

import (
	"fmt"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/rs/zerolog/log"
)

// Kind is the processing class a file belongs to.
type Kind string

const (
	KindPDF         Kind = "pdf"
	KindImage       Kind = "image"
	KindUnsupported Kind = "unsupported"
)

// Info contains detected file type information.
type Info struct {
	Kind        Kind
	MIMEType    string
	Extension   string
	Description string
}

// Supported reports whether the pipeline can process this file.
func (i *Info) Supported() bool { return i.Kind != KindUnsupported }

// Detector handles file type detection using magic bytes.
type Detector struct{}

// New creates a new file type detector.
func New() *Detector {
	return &Detector{}
}

// Detect detects the actual file type using magic bytes, not filename.
func (d *Detector) Detect(filePath string) (*Info, error) {
	mtype, err := mimetype.DetectFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to detect file type: %w", err)
	}

	mimeType := mtype.String()
	extension := mtype.Extension()

	log.Debug().Str("mime", mimeType).Str("ext", extension).Str("file", filePath).Msg("detected file type")

	info := &Info{
		MIMEType:  mimeType,
		Extension: extension,
	}
	d.classify(info)

	return info, nil
}

// classify maps the MIME type to a processing class.
func (d *Detector) classify(info *Info) {
	switch {
	case info.MIMEType == "application/pdf":
		info.Kind = KindPDF
		info.Description = "PDF document"

	case strings.HasPrefix(info.MIMEType, "image/"):
		info.Kind = KindImage
		info.Description = "Image file"

	default:
		info.Kind = KindUnsupported
		info.Description = fmt.Sprintf("Unsupported file type: %s", info.MIMEType)
	}
}
