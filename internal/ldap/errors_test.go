package ldap

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/go-ldap/ldap/v3"
)

func TestNewLDAPError(t *testing.T) {
	tests := []struct {
		name      string
		operation string
		err       error
		wantNil   bool
		wantCode  uint16
	}{
		{
			name:      "nil error",
			operation: "search",
			err:       nil,
			wantNil:   true,
		},
		{
			name:      "ldap error",
			operation: "bind",
			err:       ldap.NewError(ldap.LDAPResultInvalidCredentials, errors.New("bad password")),
			wantCode:  ldap.LDAPResultInvalidCredentials,
		},
		{
			name:      "wrapped ldap error",
			operation: "add",
			err:       fmt.Errorf("add: %w", ldap.NewError(ldap.LDAPResultEntryAlreadyExists, errors.New("exists"))),
			wantCode:  ldap.LDAPResultEntryAlreadyExists,
		},
		{
			name:      "generic error",
			operation: "connect",
			err:       errors.New("connection refused"),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := NewLDAPError(tt.operation, tt.err)

			if tt.wantNil {
				if result != nil {
					t.Errorf("NewLDAPError() = %v, want nil", result)
				}
				return
			}

			if result == nil {
				t.Fatal("NewLDAPError() = nil, want non-nil")
			}

			if result.Operation != tt.operation {
				t.Errorf("Operation = %s, want %s", result.Operation, tt.operation)
			}

			if result.Cause != tt.err {
				t.Errorf("Cause = %v, want %v", result.Cause, tt.err)
			}

			if result.LDAPCode != tt.wantCode {
				t.Errorf("LDAPCode = %d, want %d", result.LDAPCode, tt.wantCode)
			}
		})
	}
}

func TestLDAPError_Error(t *testing.T) {
	tests := []struct {
		name    string
		ldapErr *LDAPError
		want    string
	}{
		{
			name: "basic error",
			ldapErr: &LDAPError{
				Operation: "search",
				Message:   "operation failed",
			},
			want: "LDAP search failed - operation failed",
		},
		{
			name: "error with code",
			ldapErr: &LDAPError{
				Operation: "bind",
				LDAPCode:  ldap.LDAPResultInvalidCredentials,
				Message:   "authentication failed",
			},
			want: "LDAP bind failed (code 49) - authentication failed",
		},
		{
			name: "error with server message",
			ldapErr: &LDAPError{
				Operation: "add",
				Message:   "validation failed",
				ServerMsg: "attribute required",
			},
			want: "LDAP add failed - validation failed - server: attribute required",
		},
		{
			name: "error with DN",
			ldapErr: &LDAPError{
				Operation: "modify",
				Message:   "access denied",
				DN:        "cn=alice,dc=example,dc=com",
			},
			want: "LDAP modify failed - access denied - DN: cn=alice,dc=example,dc=com",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.ldapErr.Error()
			if got != tt.want {
				t.Errorf("Error() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestCategorizeError(t *testing.T) {
	tests := []struct {
		name string
		code uint16
		want ErrorCategory
	}{
		{"authentication error", ldap.LDAPResultInvalidCredentials, ErrorCategoryAuthentication},
		{"permission error", ldap.LDAPResultInsufficientAccessRights, ErrorCategoryPermission},
		{"not found error", ldap.LDAPResultNoSuchObject, ErrorCategoryNotFound},
		{"conflict error", ldap.LDAPResultEntryAlreadyExists, ErrorCategoryConflict},
		{"validation error", ldap.LDAPResultConstraintViolation, ErrorCategoryValidation},
		{"filter error", ldap.LDAPResultFilterError, ErrorCategoryValidation},
		{"server error", ldap.LDAPResultBusy, ErrorCategoryServer},
		{"connection error", ldap.LDAPResultConnectError, ErrorCategoryConnection},
		{"network error", ldap.ErrorNetwork, ErrorCategoryConnection},
		{"unknown error", 9999, ErrorCategoryUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := categorizeError(tt.code)
			if got != tt.want {
				t.Errorf("categorizeError() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestCategorizeGenericError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want ErrorCategory
	}{
		{"connection error", errors.New("connection refused"), ErrorCategoryConnection},
		{"timeout error", errors.New("operation timeout"), ErrorCategoryConnection},
		{"not connected", ErrNotConnected, ErrorCategoryConnection},
		{"typed connection error", NewConnectionError("dial failed", nil), ErrorCategoryConnection},
		{"canceled", fmt.Errorf("search: %w", context.Canceled), ErrorCategoryCanceled},
		{"deadline", context.DeadlineExceeded, ErrorCategoryCanceled},
		{"authentication error", errors.New("invalid credentials"), ErrorCategoryAuthentication},
		{"permission error", errors.New("access denied"), ErrorCategoryPermission},
		{"unknown error", errors.New("something went wrong"), ErrorCategoryUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := categorizeGenericError(tt.err)
			if got != tt.want {
				t.Errorf("categorizeGenericError() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestGetLDAPCodeMessage(t *testing.T) {
	if got := getLDAPCodeMessage(ldap.LDAPResultNoSuchObject); got != ldap.LDAPResultCodeMap[ldap.LDAPResultNoSuchObject] {
		t.Errorf("getLDAPCodeMessage() = %q", got)
	}

	if got := getLDAPCodeMessage(9999); got != "Unknown LDAP error (code 9999)" {
		t.Errorf("getLDAPCodeMessage() = %q", got)
	}
}

func TestWrapError(t *testing.T) {
	if WrapError("search", nil) != nil {
		t.Error("WrapError(nil) should be nil")
	}

	wrapped := WrapError("bind", errors.New("authentication failed"))
	var ldapErr *LDAPError
	if !errors.As(wrapped, &ldapErr) {
		t.Fatalf("WrapError() = %T, want *LDAPError", wrapped)
	}
	if ldapErr.Operation != "bind" {
		t.Errorf("Operation = %s, want bind", ldapErr.Operation)
	}

	existing := &LDAPError{Operation: "existing", Message: "test"}
	if got := WrapError("search", existing); got != existing {
		t.Errorf("WrapError() should return an existing LDAPError unchanged")
	}
	if existing.Operation != "existing" {
		t.Errorf("Operation overwritten: %s", existing.Operation)
	}

	unnamed := &LDAPError{Message: "test"}
	_ = WrapError("modify", unnamed)
	if unnamed.Operation != "modify" {
		t.Errorf("Operation = %s, want modify", unnamed.Operation)
	}
}

func TestErrorPredicates(t *testing.T) {
	notFound := NewLDAPError("search", ldap.NewError(ldap.LDAPResultNoSuchObject, errors.New("no such object")))
	conflict := ldap.NewError(ldap.LDAPResultEntryAlreadyExists, errors.New("exists"))
	auth := NewLDAPError("bind", ldap.NewError(ldap.LDAPResultInvalidCredentials, errors.New("bad password")))

	if !IsNotFoundError(notFound) {
		t.Error("IsNotFoundError() = false, want true")
	}
	if !IsNotFoundError(fmt.Errorf("read: %w", notFound)) {
		t.Error("IsNotFoundError() should see through wrapping")
	}
	if !IsConflictError(conflict) {
		t.Error("IsConflictError() = false, want true")
	}
	if !IsAuthenticationError(auth) {
		t.Error("IsAuthenticationError() = false, want true")
	}
	if IsNotFoundError(nil) {
		t.Error("IsNotFoundError(nil) = true, want false")
	}
}

func TestResultCode(t *testing.T) {
	if got := resultCode(ldap.NewError(ldap.LDAPResultBusy, errors.New("busy"))); got != ldap.LDAPResultBusy {
		t.Errorf("resultCode() = %d, want %d", got, ldap.LDAPResultBusy)
	}
	if got := resultCode(errors.New("plain")); got != 0 {
		t.Errorf("resultCode() = %d, want 0", got)
	}
}
