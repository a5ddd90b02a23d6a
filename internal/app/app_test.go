package app

import (
	"slices"
	"testing"
)

func TestApp_Close(t *testing.T) {
	tests := []struct {
		name     string
		setupApp func() *App
	}{
		{
			name:     "minimal app",
			setupApp: func() *App { return &App{} },
		},
		{
			name: "db cleanup only",
			setupApp: func() *App {
				return &App{dbCleanup: func() {}}
			},
		},
		{
			name: "trace cleanup only",
			setupApp: func() *App {
				return &App{traceCleanup: func() {}}
			},
		},
		{
			name: "all cleanups",
			setupApp: func() *App {
				return &App{
					dbCleanup:    func() {},
					traceCleanup: func() {},
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			app := tt.setupApp()
			if err := app.Close(); err != nil {
				t.Errorf("Close() unexpected error: %v", err)
			}
		})
	}
}

func TestApp_Close_ReleasesInReverseOrder(t *testing.T) {
	var order []string
	app := &App{
		dbCleanup:    func() { order = append(order, "db") },
		traceCleanup: func() { order = append(order, "trace") },
	}

	if err := app.Close(); err != nil {
		t.Fatalf("Close() unexpected error: %v", err)
	}

	// The pool closes before trace export so pool shutdown spans can flush.
	want := []string{"db", "trace"}
	if !slices.Equal(order, want) {
		t.Errorf("cleanup order = %v, want %v", order, want)
	}
}
