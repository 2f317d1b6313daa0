package web_fetch

import (
	"errors"
	"testing"
)

func TestNewLauncher(t *testing.T) {
	l, err := NewLauncher(ChromedpFetcherType, Options{Headless: true})
	if err != nil {
		t.Fatalf("NewLauncher: %v", err)
	}
	cl, ok := l.(chromedpLauncher)
	if !ok {
		t.Fatalf("unexpected launcher %T", l)
	}
	if cl.l.NavigateTimeout != DefaultNavigateTimeout {
		t.Fatalf("expected default navigate timeout, got %v", cl.l.NavigateTimeout)
	}

	_, err = NewLauncher("playwright", Options{})
	var ferr *Error
	if !errors.As(err, &ferr) {
		t.Fatalf("expected *Error for unsupported type, got %v", err)
	}
}
