package storage

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
)

// Kind classifies a StorageError.
type Kind int

const (
	// KindTransport covers network failures and any provider error that is
	// not classified more precisely.
	KindTransport Kind = iota
	// KindNotFound means the object, or the bucket, does not exist.
	KindNotFound
	// KindDenied means the provider rejected the credentials or the request
	// signature.
	KindDenied
	// KindInvalid means the caller passed an unusable argument and no request
	// was sent.
	KindInvalid
)

func (k Kind) String() string {
	switch k {
	case KindNotFound:
		return "not_found"
	case KindDenied:
		return "denied"
	case KindInvalid:
		return "invalid"
	default:
		return "transport"
	}
}

// StorageError is returned by every Client operation.
type StorageError struct {
	Op   string
	Key  string
	Kind Kind
	Err  error
}

func (e *StorageError) Error() string {
	if e.Key == "" {
		return fmt.Sprintf("storage %s: %s: %v", e.Op, e.Kind, e.Err)
	}
	return fmt.Sprintf("storage %s %q: %s: %v", e.Op, e.Key, e.Kind, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

// IsNotFound reports whether err is a StorageError of KindNotFound.
func IsNotFound(err error) bool { return kindOf(err) == KindNotFound }

// IsDenied reports whether err is a StorageError of KindDenied.
func IsDenied(err error) bool { return kindOf(err) == KindDenied }

// IsTransport reports whether err is a StorageError of KindTransport.
func IsTransport(err error) bool { return kindOf(err) == KindTransport }

func kindOf(err error) Kind {
	var se *StorageError
	if errors.As(err, &se) {
		return se.Kind
	}
	return -1
}

var deniedCodes = map[string]bool{
	"AccessDenied":          true,
	"Forbidden":             true,
	"InvalidAccessKeyId":    true,
	"SignatureDoesNotMatch": true,
	"ExpiredToken":          true,
}

// classify maps an SDK error onto a StorageError.
func classify(op, key string, err error) *StorageError {
	var se *StorageError
	if errors.As(err, &se) {
		return se
	}
	return &StorageError{Op: op, Key: key, Kind: kindFor(err), Err: err}
}

func kindFor(err error) Kind {
	var (
		noSuchKey    *types.NoSuchKey
		notFound     *types.NotFound
		noSuchBucket *types.NoSuchBucket
	)
	if errors.As(err, &noSuchKey) || errors.As(err, &notFound) || errors.As(err, &noSuchBucket) {
		return KindNotFound
	}

	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch code := apiErr.ErrorCode(); {
		case code == "NoSuchKey" || code == "NotFound" || code == "NoSuchBucket":
			return KindNotFound
		case deniedCodes[code]:
			return KindDenied
		}
	}

	var withStatus interface{ HTTPStatusCode() int }
	if errors.As(err, &withStatus) {
		switch withStatus.HTTPStatusCode() {
		case http.StatusNotFound:
			return KindNotFound
		case http.StatusUnauthorized, http.StatusForbidden:
			return KindDenied
		}
	}

	return KindTransport
}

func invalidArgument(op, key string, format string, args ...any) *StorageError {
	return &StorageError{Op: op, Key: key, Kind: KindInvalid, Err: fmt.Errorf(format, args...)}
}
