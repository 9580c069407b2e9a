package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"strconv"

	"github.com/wondertwin-ai/demo-management/internal/demo"
)

const (
	maxFormMemory = 1 << 20
	// maxFormBody bounds form request bodies, logo files included.
	maxFormBody = 32 << 20
)

// decodeJSON decodes the request body into v. An empty body leaves v as is.
func decodeJSON(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		var te *json.UnmarshalTypeError
		if errors.As(err, &te) {
			return demo.Invalid("type_error", []string{"body", te.Field}, "Input should be a valid "+te.Type.String(), te.Value)
		}
		return demo.Invalid("json_invalid", []string{"body"}, "JSON decode error", err.Error())
	}
	return nil
}

// isForm reports whether the request carries form fields instead of JSON.
func isForm(r *http.Request) bool {
	mt, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if err != nil {
		return false
	}
	return mt == "application/x-www-form-urlencoded" || mt == "multipart/form-data"
}

// parseForm parses either form encoding into r.PostForm, and multipart
// file parts into r.MultipartForm.
func parseForm(w http.ResponseWriter, r *http.Request) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxFormBody)
	var err error
	if mt, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type")); mt == "multipart/form-data" {
		err = r.ParseMultipartForm(maxFormMemory)
	} else {
		err = r.ParseForm()
	}
	if err != nil {
		return demo.Invalid("form_invalid", []string{"body"}, "Form decode error", err.Error())
	}
	return nil
}

// formValue returns the posted value for key, or nil when it was not sent.
func formValue(r *http.Request, key string) *string {
	vs, ok := r.PostForm[key]
	if !ok || len(vs) == 0 {
		return nil
	}
	v := vs[0]
	return &v
}

// formLogo returns the uploaded logo file part, or nil when none was sent.
// The returned func closes the part.
func formLogo(r *http.Request) (*demo.Upload, func(), error) {
	if r.MultipartForm == nil || len(r.MultipartForm.File["logo"]) == 0 {
		return nil, func() {}, nil
	}
	fh := r.MultipartForm.File["logo"][0]
	f, err := fh.Open()
	if err != nil {
		return nil, nil, fmt.Errorf("opening logo upload: %w", err)
	}
	return &demo.Upload{Filename: fh.Filename, Size: fh.Size, Content: f}, func() { f.Close() }, nil
}

// queryInt reads an integer query parameter, recording a field error when it
// does not parse.
func queryInt(q url.Values, key string, def int, v *demo.ValidationError) int {
	raw := q.Get(key)
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		v.Errors = append(v.Errors, demo.FieldError{
			Type:  "int_parsing",
			Loc:   []string{"query", key},
			Msg:   "Input should be a valid integer, unable to parse string as an integer",
			Input: raw,
		})
		return def
	}
	return n
}

func queryOrder(q url.Values) string {
	if v := q.Get("order_by"); v != "" {
		return v
	}
	return demo.DefaultOrderBy
}

// listQuery builds a demo list query from offset, limit, order_by, search and
// the repeatable filters parameter.
func listQuery(r *http.Request) (demo.ListQuery, error) {
	q := r.URL.Query()
	v := &demo.ValidationError{}
	lq := demo.ListQuery{
		Offset:  queryInt(q, "offset", demo.DefaultOffset, v),
		Limit:   queryInt(q, "limit", demo.DefaultLimit, v),
		OrderBy: queryOrder(q),
		Search:  q.Get("search"),
		Filters: demo.ParseFilters(q["filters"]),
	}
	if len(v.Errors) > 0 {
		return demo.ListQuery{}, v
	}
	return lq, nil
}

func memberQuery(r *http.Request) (demo.MemberQuery, error) {
	q := r.URL.Query()
	v := &demo.ValidationError{}
	mq := demo.MemberQuery{
		Offset:  queryInt(q, "offset", demo.DefaultOffset, v),
		Limit:   queryInt(q, "limit", demo.DefaultLimit, v),
		OrderBy: queryOrder(q),
	}
	if len(v.Errors) > 0 {
		return demo.MemberQuery{}, v
	}
	return mq, nil
}
