// Package blob wraps JavaScript Blob and File objects.
package blob

import (
	"errors"
	"syscall/js"
)

type Blob js.Value

var (
	blobJS = js.Global().Get("Blob")
	urlJS  = js.Global().Get("URL")
)

func JS(j interface{}) (Blob, error) {
	jv, ok := j.(js.Value)
	if !ok {
		return Blob{}, errors.New("requires JavaScript object")
	}
	if !jv.InstanceOf(blobJS) {
		return Blob{}, errors.New("requires Blob object")
	}
	return Blob(jv), nil
}

func (blob Blob) JS() js.Value {
	return js.Value(blob)
}

// Name returns the file name of a File, or an empty string for other blobs.
func (blob Blob) Name() string {
	n := js.Value(blob).Get("name")
	if n.Type() != js.TypeString {
		return ""
	}
	return n.String()
}

func (blob Blob) Size() int {
	return js.Value(blob).Get("size").Int()
}

// ObjectURL creates a URL referring to the blob. revoke must be called once
// the URL is no longer used; further calls are no-ops.
func (blob Blob) ObjectURL() (url string, revoke func() error) {
	url = urlJS.Call("createObjectURL", js.Value(blob)).String()
	revoked := false
	return url, func() error {
		if revoked {
			return nil
		}
		revoked = true
		urlJS.Call("revokeObjectURL", url)
		return nil
	}
}
