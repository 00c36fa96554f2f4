package errors

import (
	"errors"
	"fmt"
	"testing"
)

func TestCoercionError(t *testing.T) {
	tests := []struct {
		name     string
		err      *CoercionError
		wantMsg  string
		wantBase error
	}{
		{
			name:     "with reason",
			err:      &CoercionError{Value: "", Reason: "empty value"},
			wantMsg:  `cannot coerce "" to a symbolic name: empty value`,
			wantBase: ErrInvalidName,
		},
		{
			name:     "without reason",
			err:      &CoercionError{Value: "1abc"},
			wantMsg:  `cannot coerce "1abc" to a symbolic name`,
			wantBase: ErrInvalidName,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.wantMsg {
				t.Errorf("Error() = %q, want %q", got, tt.wantMsg)
			}
			if got := tt.err.Unwrap(); !errors.Is(got, tt.wantBase) {
				t.Errorf("Unwrap() = %v, want %v", got, tt.wantBase)
			}
		})
	}

	// Test with underlying error separately
	t.Run("with underlying error", func(t *testing.T) {
		underlyingErr := fmt.Errorf("rune out of range")
		err := &CoercionError{Value: "x\x00y", Reason: "control character", Err: underlyingErr}
		if got := err.Unwrap(); got != underlyingErr {
			t.Errorf("Unwrap() = %v, want %v", got, underlyingErr)
		}
	})
}

func TestUnknownFieldError(t *testing.T) {
	tests := []struct {
		name    string
		err     *UnknownFieldError
		wantMsg string
	}{
		{
			name:    "with element type",
			err:     &UnknownFieldError{ElementType: "article", Field: "publisher"},
			wantMsg: `article has no field "publisher"`,
		},
		{
			name:    "without element type",
			err:     &UnknownFieldError{Field: "volume"},
			wantMsg: `no field "volume"`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.wantMsg {
				t.Errorf("Error() = %q, want %q", got, tt.wantMsg)
			}
			if got := tt.err.Unwrap(); !errors.Is(got, ErrUnknownField) {
				t.Errorf("Unwrap() = %v, want %v", got, ErrUnknownField)
			}
		})
	}
}

func TestQueryError(t *testing.T) {
	t.Run("message", func(t *testing.T) {
		err := &QueryError{Query: "/[unclosed/", Reason: "invalid pattern"}
		want := `malformed query "/[unclosed/": invalid pattern`
		if got := err.Error(); got != want {
			t.Errorf("Error() = %q, want %q", got, want)
		}
		if got := err.Unwrap(); !errors.Is(got, ErrMalformedQuery) {
			t.Errorf("Unwrap() = %v, want %v", got, ErrMalformedQuery)
		}
	})

	t.Run("with underlying error", func(t *testing.T) {
		underlyingErr := fmt.Errorf("missing closing ]")
		err := &QueryError{Query: "/[/", Reason: "invalid pattern", Err: underlyingErr}
		if got := err.Unwrap(); got != underlyingErr {
			t.Errorf("Unwrap() = %v, want %v", got, underlyingErr)
		}
	})
}

func TestParseError(t *testing.T) {
	tests := []struct {
		name    string
		err     *ParseError
		wantMsg string
	}{
		{
			name:    "path and position",
			err:     &ParseError{Path: "refs.bib", Line: 12, Column: 3, Message: "unexpected token"},
			wantMsg: "refs.bib:12:3: unexpected token",
		},
		{
			name:    "position only",
			err:     &ParseError{Line: 4, Column: 1, Message: "unbalanced brace"},
			wantMsg: "line 4:1: unbalanced brace",
		},
		{
			name:    "path only",
			err:     &ParseError{Path: "refs.bib", Message: "empty input"},
			wantMsg: "refs.bib: empty input",
		},
		{
			name:    "message only",
			err:     &ParseError{Message: "empty input"},
			wantMsg: "empty input",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.wantMsg {
				t.Errorf("Error() = %q, want %q", got, tt.wantMsg)
			}
			if got := tt.err.Unwrap(); !errors.Is(got, ErrInvalidInput) {
				t.Errorf("Unwrap() = %v, want %v", got, ErrInvalidInput)
			}
		})
	}
}

func TestIOError(t *testing.T) {
	tests := []struct {
		name    string
		err     *IOError
		wantMsg string
	}{
		{
			name:    "with path",
			err:     &IOError{Operation: "read", Path: "refs.bib", Err: fmt.Errorf("permission denied")},
			wantMsg: "failed to read refs.bib: permission denied",
		},
		{
			name:    "without path",
			err:     &IOError{Operation: "flush", Err: fmt.Errorf("pipe closed")},
			wantMsg: "failed to flush: pipe closed",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.wantMsg {
				t.Errorf("Error() = %q, want %q", got, tt.wantMsg)
			}
		})
	}
}

func TestNotFoundError(t *testing.T) {
	tests := []struct {
		name     string
		err      *NotFoundError
		wantMsg  string
		wantBase error
	}{
		{
			name:     "with ID",
			err:      &NotFoundError{Resource: "entry", ID: "knuth1984"},
			wantMsg:  "entry not found: knuth1984",
			wantBase: ErrNotFound,
		},
		{
			name:     "without ID",
			err:      &NotFoundError{Resource: "string constant"},
			wantMsg:  "string constant not found",
			wantBase: ErrNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.wantMsg {
				t.Errorf("Error() = %q, want %q", got, tt.wantMsg)
			}
			if got := tt.err.Unwrap(); !errors.Is(got, tt.wantBase) {
				t.Errorf("Unwrap() = %v, want %v", got, tt.wantBase)
			}
		})
	}
}

func TestHelperConstructors(t *testing.T) {
	t.Run("NewCoercion", func(t *testing.T) {
		err := NewCoercion("bad key", "contains whitespace")
		if !errors.Is(err, ErrInvalidName) {
			t.Errorf("NewCoercion() should wrap ErrInvalidName")
		}
	})

	t.Run("NewUnknownField", func(t *testing.T) {
		err := NewUnknownField("preamble", "author")
		if !errors.Is(err, ErrUnknownField) {
			t.Errorf("NewUnknownField() should wrap ErrUnknownField")
		}
	})

	t.Run("NewQuery", func(t *testing.T) {
		err := NewQuery("/(/", "invalid pattern", nil)
		if !errors.Is(err, ErrMalformedQuery) {
			t.Errorf("NewQuery() should wrap ErrMalformedQuery")
		}
	})

	t.Run("NewParse", func(t *testing.T) {
		err := NewParse("test.bib", 1, 1, "unexpected @")
		if !errors.Is(err, ErrInvalidInput) {
			t.Errorf("NewParse() should wrap ErrInvalidInput")
		}
	})

	t.Run("NewNotFound", func(t *testing.T) {
		err := NewNotFound("entry", "missing2020")
		if !errors.Is(err, ErrNotFound) {
			t.Errorf("NewNotFound() should wrap ErrNotFound")
		}
	})
}

func TestWrap(t *testing.T) {
	t.Run("nil error", func(t *testing.T) {
		if got := Wrap(nil, "context"); got != nil {
			t.Errorf("Wrap(nil) = %v, want nil", got)
		}
	})

	t.Run("wraps with context", func(t *testing.T) {
		base := errors.New("base error")
		wrapped := Wrap(base, "loading bibliography")
		want := "loading bibliography: base error"
		if got := wrapped.Error(); got != want {
			t.Errorf("Wrap() = %q, want %q", got, want)
		}
		if !errors.Is(wrapped, base) {
			t.Errorf("Wrap() should preserve error chain")
		}
	})
}

func TestWrapf(t *testing.T) {
	t.Run("nil error", func(t *testing.T) {
		if got := Wrapf(nil, "context %d", 42); got != nil {
			t.Errorf("Wrapf(nil) = %v, want nil", got)
		}
	})

	t.Run("formats context", func(t *testing.T) {
		base := errors.New("base error")
		wrapped := Wrapf(base, "parsing %s", "refs.bib")
		want := "parsing refs.bib: base error"
		if got := wrapped.Error(); got != want {
			t.Errorf("Wrapf() = %q, want %q", got, want)
		}
	})
}

func TestIsAs(t *testing.T) {
	err := fmt.Errorf("outer: %w", NewUnknownField("comment", "title"))

	if !Is(err, ErrUnknownField) {
		t.Errorf("Is() should see through wrapping")
	}

	var fieldErr *UnknownFieldError
	if !As(err, &fieldErr) {
		t.Fatalf("As() should extract *UnknownFieldError")
	}
	if fieldErr.Field != "title" {
		t.Errorf("Field = %q, want %q", fieldErr.Field, "title")
	}
}
