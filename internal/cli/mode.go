package cli

import (
	"errors"
	"strings"
)

var (
	errMissingBag       = errors.New("--bag is required")
	errNoMode           = errors.New("nothing to do, use at least one of --info, --print, --export, --export_all")
	errExportNeedsTopic = errors.New("--export requires --topic")
	errExportConflict   = errors.New("--export and --export_all can't be used together")
)

// Mode is a set of operations. They run in the order they're declared.
type Mode uint8

const (
	ModeInfo Mode = 1 << iota
	ModePrint
	ModeExport
	ModeExportAll
)

func (mode Mode) Has(other Mode) bool {
	return mode&other != 0
}

func (mode Mode) String() string {
	var names []string
	for _, m := range []struct {
		mode Mode
		name string
	}{
		{ModeInfo, "info"},
		{ModePrint, "print"},
		{ModeExport, "export"},
		{ModeExportAll, "export_all"},
	} {
		if mode.Has(m.mode) {
			names = append(names, m.name)
		}
	}

	if len(names) == 0 {
		return "none"
	}
	return strings.Join(names, "+")
}

// Options are the invocation flags.
type Options struct {
	Bag        string
	Topic      string
	Info       bool
	Print      bool
	Export     bool
	ExportName string
	ExportAll  bool
}

// Resolve turns the flags into the operations to run.
func (opts *Options) Resolve() (Mode, error) {
	if opts.Bag == "" {
		return 0, errMissingBag
	}

	var mode Mode
	if opts.Info {
		mode |= ModeInfo
	}
	if opts.Print {
		mode |= ModePrint
	}
	if opts.Export {
		mode |= ModeExport
	}
	if opts.ExportAll {
		mode |= ModeExportAll
	}

	switch {
	case mode == 0:
		return 0, errNoMode
	case mode.Has(ModeExport) && mode.Has(ModeExportAll):
		return 0, errExportConflict
	case mode.Has(ModeExport) && opts.Topic == "":
		return 0, errExportNeedsTopic
	}

	return mode, nil
}
