package monitoring

import "testing"

func TestSetLoggerRedirects(t *testing.T) {
	original := Logf
	defer func() { Logf = original }()

	called := false
	SetLogger(func(format string, v ...interface{}) { called = true })
	Logf("hello %d", 1)
	if !called {
		t.Error("custom logger was not called")
	}
}

func TestSetLoggerNilIsNoOp(t *testing.T) {
	original := Logf
	defer func() { Logf = original }()

	SetLogger(nil)
	// Must not panic and must not be nil.
	if Logf == nil {
		t.Fatal("Logf is nil after SetLogger(nil)")
	}
	Logf("dropped")
}
