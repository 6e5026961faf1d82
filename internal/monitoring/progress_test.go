package monitoring

import (
	"fmt"
	"strings"
	"sync"
	"testing"
)

func TestProgressMonotonic(t *testing.T) {
	original := Logf
	defer func() { Logf = original }()

	var mu sync.Mutex
	var lines []string
	SetLogger(func(format string, v ...interface{}) {
		mu.Lock()
		lines = append(lines, fmt.Sprintf(format, v...))
		mu.Unlock()
	})

	p := NewProgress("tiles", 8, true)
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			p.Tick()
		}()
	}
	wg.Wait()

	if p.Done() != 8 {
		t.Fatalf("Done = %d, want 8", p.Done())
	}
	// Extra ticks past total must not push the count over.
	p.Tick()
	if p.Done() != 8 {
		t.Errorf("Done after overflow tick = %d, want 8", p.Done())
	}
	mu.Lock()
	defer mu.Unlock()
	if len(lines) == 0 {
		t.Fatal("expected progress lines")
	}
	if !strings.Contains(lines[len(lines)-1], "(100%)") {
		t.Errorf("last line %q should report 100%%", lines[len(lines)-1])
	}
}

func TestProgressDisabled(t *testing.T) {
	original := Logf
	defer func() { Logf = original }()
	called := false
	SetLogger(func(format string, v ...interface{}) { called = true })

	p := NewProgress("tiles", 4, false)
	p.Tick()
	if called {
		t.Error("disabled progress must not log")
	}
	if p.Done() != 0 {
		t.Errorf("disabled progress Done = %d, want 0", p.Done())
	}
}
