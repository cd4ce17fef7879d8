package cli

import (
	"errors"
	"testing"
)

func TestOptionsResolve(t *testing.T) {
	testCases := []struct {
		Name    string
		Options Options
		Mode    Mode
		Err     error
	}{
		{
			Name:    "Missing Bag",
			Options: Options{Info: true},
			Err:     errMissingBag,
		},
		{
			Name:    "Nothing To Do",
			Options: Options{Bag: "a.bag", Topic: "/WS1/reco_stt"},
			Err:     errNoMode,
		},
		{
			Name:    "Info",
			Options: Options{Bag: "a.bag", Info: true},
			Mode:    ModeInfo,
		},
		{
			Name:    "Print Every Topic",
			Options: Options{Bag: "a.bag", Print: true},
			Mode:    ModePrint,
		},
		{
			Name:    "Export Without Topic",
			Options: Options{Bag: "a.bag", Export: true, ExportName: "out.csv"},
			Err:     errExportNeedsTopic,
		},
		{
			Name:    "Export And Export All",
			Options: Options{Bag: "a.bag", Topic: "/WS1/reco_stt", Export: true, ExportAll: true},
			Err:     errExportConflict,
		},
		{
			Name:    "Combined",
			Options: Options{Bag: "a.bag", Topic: "/WS1/reco_stt", Info: true, Print: true, Export: true},
			Mode:    ModeInfo | ModePrint | ModeExport,
		},
		{
			Name:    "Export All Ignores Topic",
			Options: Options{Bag: "a.bag", Topic: "/WS1/reco_stt", ExportAll: true},
			Mode:    ModeExportAll,
		},
	}

	for _, testCase := range testCases {
		testCase := testCase
		t.Run(testCase.Name, func(t *testing.T) {
			mode, err := testCase.Options.Resolve()
			if testCase.Err != nil {
				if !errors.Is(err, testCase.Err) {
					t.Fatalf("expected %v, got %v", testCase.Err, err)
				}
				return
			}

			if err != nil {
				t.Fatal(err)
			}
			if mode != testCase.Mode {
				t.Fatalf("expected %s, got %s", testCase.Mode, mode)
			}
		})
	}
}

func TestModeString(t *testing.T) {
	testCases := []struct {
		Mode     Mode
		Expected string
	}{
		{Mode: 0, Expected: "none"},
		{Mode: ModeExportAll, Expected: "export_all"},
		{Mode: ModeInfo | ModePrint | ModeExport, Expected: "info+print+export"},
	}

	for _, testCase := range testCases {
		if actual := testCase.Mode.String(); actual != testCase.Expected {
			t.Errorf("expected %s, got %s", testCase.Expected, actual)
		}
	}
}
