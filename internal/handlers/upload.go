package handlers

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"trimsizer/internal/encoding"
	"trimsizer/internal/logging"
	"trimsizer/internal/mediatypes"
)

// maxFieldBytes bounds each non-file multipart field.
const maxFieldBytes = 4096

var errNoFile = errors.New("multipart field \"file\" is required")

// upload is a source clip saved under the upload directory.
type upload struct {
	Path string
	Name string
	Size int64
}

func (u *upload) remove() {
	if u == nil {
		return
	}
	if err := os.Remove(u.Path); err != nil && !os.IsNotExist(err) {
		logging.Warn("failed to remove upload %s: %v", u.Path, err)
	}
}

// readMultipart streams a multipart body: the "file" part is copied
// straight to uploadDir/<id><ext> and every other part is collected as a
// form value. The body is capped at maxUploadBytes.
func (h *Handlers) readMultipart(w http.ResponseWriter, r *http.Request, id string) (url.Values, *upload, error) {
	if h.maxUploadBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes)
	}
	reader, err := r.MultipartReader()
	if err != nil {
		return nil, nil, invalidInput(fmt.Errorf("expected multipart/form-data: %w", err))
	}

	form := url.Values{}
	var up *upload
	fail := func(err error) (url.Values, *upload, error) {
		up.remove()
		return nil, nil, err
	}

	for {
		part, err := reader.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			return fail(bodyError(err))
		}

		name := part.FormName()
		if name == "file" && part.FileName() != "" {
			if up != nil {
				part.Close()
				return fail(invalidInput(errors.New("only one file may be uploaded")))
			}
			up, err = h.saveUpload(part, id)
			part.Close()
			if err != nil {
				return fail(err)
			}
			continue
		}

		value, err := io.ReadAll(io.LimitReader(part, maxFieldBytes+1))
		part.Close()
		if err != nil {
			return fail(bodyError(err))
		}
		if len(value) > maxFieldBytes {
			return fail(invalidInput(fmt.Errorf("field %q is too long", name)))
		}
		form.Add(name, string(value))
	}

	if up == nil {
		return nil, nil, invalidInput(errNoFile)
	}
	return form, up, nil
}

func (h *Handlers) saveUpload(part *multipart.Part, id string) (*upload, error) {
	name := filepath.Base(part.FileName())
	if !mediatypes.IsVideoFile(name) {
		return nil, invalidInput(fmt.Errorf("unsupported file type %q", filepath.Ext(name)))
	}

	if err := os.MkdirAll(h.uploadDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create upload directory: %w", err)
	}
	path := filepath.Join(h.uploadDir, id+strings.ToLower(filepath.Ext(name)))
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create upload file: %w", err)
	}

	size, err := io.Copy(f, part)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(path)
		return nil, bodyError(err)
	}
	if size == 0 {
		os.Remove(path)
		return nil, invalidInput(errors.New("uploaded file is empty"))
	}

	logging.Debug("upload %s saved: %s (%d bytes)", id, name, size)
	return &upload{Path: path, Name: name, Size: size}, nil
}

// requestError carries an HTTP status for failures outside the encoder.
type requestError struct {
	status int
	err    error
}

func (e *requestError) Error() string { return e.err.Error() }
func (e *requestError) Unwrap() error { return e.err }

func invalidInput(err error) error {
	return &requestError{status: http.StatusBadRequest, err: err}
}

func bodyError(err error) error {
	var maxErr *http.MaxBytesError
	if errors.As(err, &maxErr) {
		return &requestError{
			status: http.StatusRequestEntityTooLarge,
			err:    fmt.Errorf("upload exceeds %d MB", maxErr.Limit/(1024*1024)),
		}
	}
	return invalidInput(fmt.Errorf("failed to read upload: %w", err))
}

// writeRequestError writes any handler error, preferring a requestError
// status and falling back to the encoding error mapping.
func writeRequestError(w http.ResponseWriter, err error) {
	var reqErr *requestError
	if errors.As(err, &reqErr) {
		writeJSONError(w, reqErr.Error(), reqErr.status)
		return
	}
	writeEncodeError(w, err)
}

// parseTarget builds the encoding target from form values. Source
// dimensions and duration come from info.
func parseTarget(form url.Values, info *encoding.MediaInfo) (encoding.EncodingTarget, error) {
	format, err := encoding.ParseFormat(strings.ToLower(valueOr(form, "format", "mp4")))
	if err != nil {
		return encoding.EncodingTarget{}, err
	}
	mode, err := encoding.ParseMode(strings.ToLower(form.Get("mode")))
	if err != nil {
		return encoding.EncodingTarget{}, err
	}

	target := encoding.EncodingTarget{
		Format:       format,
		SourceWidth:  info.Width,
		SourceHeight: info.Height,
	}
	if form.Get("mode") != "" {
		target.Mode = mode
	}

	if target.TargetSizeMB, err = parseFloat(form.Get("targetSizeMB"), DefaultTargetSizeMB); err != nil {
		return encoding.EncodingTarget{}, invalidField(form, "targetSizeMB")
	}
	if target.TargetFrameRate, err = parseInt(form.Get("frameRate"), DefaultFrameRate); err != nil {
		return encoding.EncodingTarget{}, invalidField(form, "frameRate")
	}
	if target.Scale, err = parseFloat(form.Get("scale"), 1); err != nil {
		return encoding.EncodingTarget{}, invalidField(form, "scale")
	}

	start, err := parseFloat(form.Get("start"), 0)
	if err != nil {
		return encoding.EncodingTarget{}, invalidField(form, "start")
	}
	end, err := parseFloat(form.Get("end"), info.Duration)
	if err != nil {
		return encoding.EncodingTarget{}, invalidField(form, "end")
	}
	target.Trim, err = encoding.NewTrimRange(start, end, info.Duration)
	if err != nil {
		return encoding.EncodingTarget{}, err
	}

	if err := target.Validate(); err != nil {
		return encoding.EncodingTarget{}, err
	}
	return target, nil
}

func invalidField(form url.Values, name string) error {
	return invalidInput(fmt.Errorf("invalid %s: %q", name, form.Get(name)))
}

func valueOr(form url.Values, key, def string) string {
	if v := form.Get(key); v != "" {
		return v
	}
	return def
}
