package file

import "toolhost/internal/config"

// -- Edit File --

// EditFileRequest replaces a file's full contents. This is not a merge:
// the previous contents are discarded.
type EditFileRequest struct {
	Path            string `json:"path" mapstructure:"path"`
	Contents        string `json:"contents" mapstructure:"contents"`
	CreateIfMissing bool   `json:"create_if_missing" mapstructure:"create_if_missing"`
}

func (r *EditFileRequest) Validate(cfg *config.Config) error {
	if r.Path == "" {
		return ErrPathRequired
	}
	if int64(len(r.Contents)) > cfg.Tools.MaxFileSize {
		return ErrFileTooLarge
	}
	return nil
}

type EditFileResponse struct {
	AbsolutePath string `json:"-"`
	RelativePath string `json:"path"`
	BytesWritten int    `json:"bytes_written"`

	// ModifiedExternally is set when the file's content at overwrite time
	// no longer matched the hash of the last write through this service.
	ModifiedExternally bool `json:"modified_externally,omitempty"`
}

// -- Read File --

type ReadFileRequest struct {
	Path string `json:"path" mapstructure:"path"`
}

func (r *ReadFileRequest) Validate(cfg *config.Config) error {
	if r.Path == "" {
		return ErrPathRequired
	}
	return nil
}

type ReadFileResponse struct {
	Path     string `json:"path"`
	Contents string `json:"contents"`
}
