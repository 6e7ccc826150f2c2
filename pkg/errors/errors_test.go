package errors

import (
	stderrors "errors"
	"testing"
)

func TestIsRetryable(t *testing.T) {
	retryable := []Kind{KindNetwork, KindTimeout, KindRateLimit, KindServer}
	terminal := []Kind{KindValidation, KindUnsupported, KindExtraction, KindNotReady, KindNotFound, KindStorage, KindUnknown}

	for _, k := range retryable {
		if !IsRetryable(k) {
			t.Errorf("%s should be retryable", k)
		}
	}
	for _, k := range terminal {
		if IsRetryable(k) {
			t.Errorf("%s should be terminal", k)
		}
	}
}

func TestIsRetryableError(t *testing.T) {
	if IsRetryableError(nil) {
		t.Error("nil is not retryable")
	}
	if IsRetryableError(New(KindValidation, "bad")) {
		t.Error("validation errors must not be retried")
	}
	if !IsRetryableError(New(KindNetwork, "reset")) {
		t.Error("network errors are retryable")
	}
	// unclassified errors are treated as transient
	if !IsRetryableError(stderrors.New("mystery")) {
		t.Error("untyped errors default to retryable")
	}
}

func TestWrapPreservesCause(t *testing.T) {
	cause := stderrors.New("underlying")
	err := Wrap(KindStorage, cause, "save failed for %s", "a.jpg")

	if !stderrors.Is(err, cause) {
		t.Error("wrapped cause must survive errors.Is")
	}
	if KindOf(err) != KindStorage {
		t.Errorf("expected storage kind, got %s", KindOf(err))
	}
}

func TestKindOfNestedError(t *testing.T) {
	inner := New(KindRateLimit, "slow down")
	outer := Wrap(KindExtraction, inner, "extract failed")

	// the outermost kind wins
	if KindOf(outer) != KindExtraction {
		t.Errorf("expected extraction, got %s", KindOf(outer))
	}
}

func TestKindForStatusCode(t *testing.T) {
	tests := []struct {
		code int
		want Kind
	}{
		{404, KindNotFound},
		{429, KindRateLimit},
		{500, KindServer},
		{503, KindServer},
		{403, KindNetwork},
		{200, KindUnknown},
	}
	for _, tt := range tests {
		if got := KindForStatusCode(tt.code); got != tt.want {
			t.Errorf("KindForStatusCode(%d) = %s, want %s", tt.code, got, tt.want)
		}
	}
}

func TestErrorStringWithCode(t *testing.T) {
	err := New(KindServer, "bad gateway").WithCode(502)
	want := "server_error error (code 502): bad gateway"
	if err.Error() != want {
		t.Errorf("got %q, want %q", err.Error(), want)
	}
}
