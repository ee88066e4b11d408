package health

import (
	"context"
	"errors"
	"strings"
	"testing"
)

var errDown = errors.New("down")

func TestAll(t *testing.T) {
	tests := []struct {
		name    string
		probes  []Probe
		wantErr string
	}{
		{"empty", nil, ""},
		{"all pass", []Probe{Fixed(true, ""), Fixed(true, "")}, ""},
		{"nil skipped", []Probe{nil, Fixed(true, "")}, ""},
		{"first failure wins", []Probe{Fixed(true, ""), Fixed(false, "a"), Fixed(false, "b")}, "a"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := All(tt.probes...).Check(context.Background())
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("err = %v", err)
				}
				return
			}
			if err == nil || err.Error() != tt.wantErr {
				t.Fatalf("err = %v, want %q", err, tt.wantErr)
			}
		})
	}
}

func TestAny(t *testing.T) {
	if err := Any(Fixed(false, "a"), Fixed(true, "")).Check(context.Background()); err != nil {
		t.Fatalf("one passing probe should pass: %v", err)
	}
	if err := Any(Fixed(false, "a"), Fixed(false, "b")).Check(context.Background()); err == nil || err.Error() != "b" {
		t.Fatalf("err = %v, want last failure", err)
	}
	if err := Any().Check(context.Background()); err == nil || err.Error() != "no healthy probes" {
		t.Fatalf("err = %v", err)
	}
	if err := Any(nil).Check(context.Background()); err == nil {
		t.Fatal("only nil probes should fail")
	}
}

func TestInitialized(t *testing.T) {
	if err := Initialized("gateway", func() error { return nil }).Check(context.Background()); err != nil {
		t.Fatalf("err = %v", err)
	}
	err := Initialized("gateway", func() error { return errDown }).Check(context.Background())
	if !errors.Is(err, errDown) || !strings.Contains(err.Error(), "gateway not initialized") {
		t.Fatalf("err = %v", err)
	}
}

func TestShutdownGate(t *testing.T) {
	var g ShutdownGate
	p := g.Probe()
	if err := p.Check(context.Background()); err != nil || g.Draining() {
		t.Fatalf("zero gate should pass: %v", err)
	}

	g.Set("")
	if err := p.Check(context.Background()); err == nil || err.Error() != "draining" {
		t.Fatalf("err = %v, want default reason", err)
	}
	if !g.Draining() {
		t.Fatal("Draining should report true")
	}

	g.Clear()
	if err := p.Check(context.Background()); err != nil {
		t.Fatalf("cleared gate should pass: %v", err)
	}
}
