package pathsync

import "testing"

func TestExclusionSet_Matches(t *testing.T) {
	testCases := []struct {
		name     string
		patterns []string
		path     string
		want     bool
	}{
		{"Basename literal at root", []string{"node_modules"}, "node_modules", true},
		{"Basename literal nested", []string{"node_modules"}, "a/b/node_modules", true},
		{"Basename literal no partial", []string{"node_modules"}, "a/node_modules_old", false},
		{"Path literal", []string{"docs/config.json"}, "docs/config.json", true},
		{"Path literal other dir", []string{"docs/config.json"}, "other/docs/config.json", false},
		{"Suffix glob", []string{"*.log"}, "logs/app.log", true},
		{"Suffix glob no match", []string{"*.log"}, "logs/app.log.gz", false},
		{"Prefix glob", []string{"~*"}, "office/~lock.docx", true},
		{"Case insensitive", []string{"*.TMP"}, "Cache/File.tmp", true},
		{"Doublestar path glob", []string{"cache/**/*.bin"}, "cache/a/b/c.bin", true},
		{"Doublestar path glob other root", []string{"cache/**/*.bin"}, "other/cache/c.bin", false},
		{"Brace alternatives", []string{"*.{jpg,png}"}, "img/photo.PNG", true},
		{"Subtree pattern", []string{"build/"}, "build", true},
		{"Subtree pattern child", []string{"out/build/"}, "out/build/x/y.o", true},
		{"Subtree pattern no sibling", []string{"out/build/"}, "out/build-tools/y.o", false},
		{"Empty pattern ignored", []string{""}, "anything", false},
		{"No patterns", nil, "anything", false},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			set := makeExclusionSet(tc.patterns)
			base := tc.path
			for i := len(tc.path) - 1; i >= 0; i-- {
				if tc.path[i] == '/' {
					base = tc.path[i+1:]
					break
				}
			}
			if got := set.matches(tc.path, base); got != tc.want {
				t.Errorf("patterns %v on %q: got %v, want %v", tc.patterns, tc.path, got, tc.want)
			}
		})
	}
}

func TestExclusions_FileVsDir(t *testing.T) {
	e := newExclusions([]string{"*.bak"}, []string{"tmp"})

	if !e.isExcluded("a/file.bak", "file.bak", false) {
		t.Error("file pattern must exclude files")
	}
	if e.isExcluded("a/dir.bak", "dir.bak", true) {
		t.Error("file pattern must not exclude directories")
	}
	if !e.isExcluded("a/tmp", "tmp", true) {
		t.Error("dir pattern must exclude directories")
	}
	if e.isExcluded("a/tmp", "tmp", false) {
		t.Error("dir pattern must not exclude files")
	}
}

func TestValidateExclusions(t *testing.T) {
	if err := ValidateExclusions([]string{"*.log", "build/", "a/**/b"}); err != nil {
		t.Errorf("expected valid patterns, got %v", err)
	}
	if err := ValidateExclusions([]string{"*.log", "[unclosed"}); err == nil {
		t.Error("expected an error for an unclosed character class")
	}
}
