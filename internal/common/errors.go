package common

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Kind classifies a failure. The set is closed: transport layers switch on
// it exhaustively to pick a status code.
type Kind uint8

const (
	KindInternal Kind = iota
	KindValidation
	KindNotFound
	KindInvalidCredentials
	KindMalformedToken
	KindInvalidSignature
	KindTokenExpired
	KindInvalidRefreshToken
	KindTokenRevoked
	KindUnauthenticated
	KindForbidden
	KindDuplicateEndpointPermission
	KindEndpointPermissionNotFound
	KindPermissionNotFound
	KindStoreUnavailable
)

var kindNames = map[Kind]string{
	KindInternal:                    "internal",
	KindValidation:                  "validation",
	KindNotFound:                    "not_found",
	KindInvalidCredentials:          "invalid_credentials",
	KindMalformedToken:              "malformed_token",
	KindInvalidSignature:            "invalid_signature",
	KindTokenExpired:                "token_expired",
	KindInvalidRefreshToken:         "invalid_refresh_token",
	KindTokenRevoked:                "token_revoked",
	KindUnauthenticated:             "unauthenticated",
	KindForbidden:                   "forbidden",
	KindDuplicateEndpointPermission: "duplicate_endpoint_permission",
	KindEndpointPermissionNotFound:  "endpoint_permission_not_found",
	KindPermissionNotFound:          "permission_not_found",
	KindStoreUnavailable:            "store_unavailable",
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return fmt.Sprintf("kind(%d)", uint8(k))
}

// IsCredentialFailure reports whether the kind means "the caller is not
// authenticated" as opposed to a server-side fault.
func (k Kind) IsCredentialFailure() bool {
	switch k {
	case KindInvalidCredentials, KindMalformedToken, KindInvalidSignature,
		KindTokenExpired, KindInvalidRefreshToken, KindTokenRevoked, KindUnauthenticated:
		return true
	}
	return false
}

// Error is a tagged failure: a kind, the operation that failed, context
// fields (ids involved) and an optional cause.
type Error struct {
	Kind   Kind
	Op     string
	Fields map[string]string
	Err    error
}

// E builds an *Error. kv is a flat list of key/value pairs; a trailing key
// without value is dropped.
func E(kind Kind, op string, err error, kv ...string) *Error {
	e := &Error{Kind: kind, Op: op, Err: err}
	if len(kv) > 1 {
		e.Fields = make(map[string]string, len(kv)/2)
		for i := 0; i+1 < len(kv); i += 2 {
			e.Fields[kv[i]] = kv[i+1]
		}
	}
	return e
}

func (e *Error) Error() string {
	var b strings.Builder
	if e.Op != "" {
		b.WriteString(e.Op)
		b.WriteString(": ")
	}
	b.WriteString(e.Kind.String())
	if len(e.Fields) > 0 {
		keys := make([]string, 0, len(e.Fields))
		for k := range e.Fields {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			fmt.Fprintf(&b, " %s=%s", k, e.Fields[k])
		}
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches any *Error of the same kind, so the sentinels below work with
// errors.Is regardless of Op, Fields or cause.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// LogAttrs flattens the error into key/value pairs for a structured logger.
func (e *Error) LogAttrs() []any {
	attrs := []any{"kind", e.Kind.String()}
	if e.Op != "" {
		attrs = append(attrs, "op", e.Op)
	}
	for k, v := range e.Fields {
		attrs = append(attrs, k, v)
	}
	return attrs
}

// KindOf returns the kind of the first *Error in err's chain, or
// KindInternal when there is none.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

var (
	ErrInternal                    = &Error{Kind: KindInternal}
	ErrValidation                  = &Error{Kind: KindValidation}
	ErrNotFound                    = &Error{Kind: KindNotFound}
	ErrInvalidCredentials          = &Error{Kind: KindInvalidCredentials}
	ErrMalformedToken              = &Error{Kind: KindMalformedToken}
	ErrInvalidSignature            = &Error{Kind: KindInvalidSignature}
	ErrTokenExpired                = &Error{Kind: KindTokenExpired}
	ErrInvalidRefreshToken         = &Error{Kind: KindInvalidRefreshToken}
	ErrTokenRevoked                = &Error{Kind: KindTokenRevoked}
	ErrUnauthenticated             = &Error{Kind: KindUnauthenticated}
	ErrForbidden                   = &Error{Kind: KindForbidden}
	ErrDuplicateEndpointPermission = &Error{Kind: KindDuplicateEndpointPermission}
	ErrEndpointPermissionNotFound  = &Error{Kind: KindEndpointPermissionNotFound}
	ErrPermissionNotFound          = &Error{Kind: KindPermissionNotFound}
	ErrStoreUnavailable            = &Error{Kind: KindStoreUnavailable}
)
