package executor

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"reflect"
)

const contentTypeJSON = "application/json"

// errUnbufferedBody is reported for io.Reader bodies that reach a call
// without going through Request.Buffered.
var errUnbufferedBody = errors.New("reader body must be buffered before it is sent")

// Buffered returns a copy of r whose io.Reader body has been read into
// memory, so the same request can be sent any number of times. Other body
// kinds are returned unchanged.
func (r Request) Buffered() (Request, error) {
	rd, ok := r.Body.(io.Reader)
	if !ok {
		return r, nil
	}
	data, err := io.ReadAll(rd)
	if err != nil {
		return r, fmt.Errorf("read body: %w", err)
	}
	r.Body = data
	return r, nil
}

// encodeBody picks the transmission mode for a request body. Maps are sent
// as JSON; strings and byte slices are sent as-is; anything else is sent as
// its default text form. Readers are rejected because one reader cannot back
// more than one call. The returned content type is empty unless the body was
// encoded as JSON.
func encodeBody(body any) (io.Reader, string, error) {
	switch v := body.(type) {
	case nil:
		return nil, "", nil
	case []byte:
		return bytes.NewReader(v), "", nil
	case string:
		return bytes.NewReader([]byte(v)), "", nil
	case io.Reader:
		return nil, "", errUnbufferedBody
	}

	if reflect.ValueOf(body).Kind() == reflect.Map {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, "", fmt.Errorf("encode body: %w", err)
		}
		return bytes.NewReader(data), contentTypeJSON, nil
	}
	return bytes.NewReader([]byte(fmt.Sprint(body))), "", nil
}
