package architecture_test

import (
	"bufio"
	"fmt"
	"go/parser"
	"go/token"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
)

type violation struct {
	file string
	imp  string
	rule string
}

func TestImportBoundaries(t *testing.T) {
	root, modulePath := moduleRoot(t)

	var violations []violation
	walkImports(t, root, func(rel, imp string) {
		layer := layerFor(rel)
		if layer == "" {
			return
		}
		for _, bad := range disallowedImports(modulePath, layer) {
			if strings.HasPrefix(imp, bad) {
				violations = append(violations, violation{file: rel, imp: imp, rule: bad})
				return
			}
		}
	})

	if len(violations) > 0 {
		var b strings.Builder
		b.WriteString("import boundary violations:\n")
		for _, v := range violations {
			fmt.Fprintf(&b, "- %s imports %q (disallowed: %q)\n", v.file, v.imp, v.rule)
		}
		t.Fatal(b.String())
	}
}

// Outbound clients are wired in app and used by services only.
func TestClientsImportedOnlyByServicesAndApp(t *testing.T) {
	root, modulePath := moduleRoot(t)
	clientsPrefix := modulePath + "/internal/clients/"

	var violations []violation
	walkImports(t, root, func(rel, imp string) {
		if !strings.HasPrefix(imp, clientsPrefix) {
			return
		}
		switch {
		case strings.HasPrefix(rel, "internal/clients/"),
			strings.HasPrefix(rel, "internal/services/"),
			strings.HasPrefix(rel, "internal/app/"):
			return
		}
		violations = append(violations, violation{file: rel, imp: imp})
	})

	if len(violations) > 0 {
		var b strings.Builder
		b.WriteString("internal/clients imported outside services and app:\n")
		for _, v := range violations {
			fmt.Fprintf(&b, "- %s imports %q\n", v.file, v.imp)
		}
		t.Fatal(b.String())
	}
}

func moduleRoot(t *testing.T) (string, string) {
	t.Helper()
	start, err := os.Getwd()
	if err != nil {
		t.Fatalf("getwd: %v", err)
	}
	root, err := findModuleRoot(start)
	if err != nil {
		t.Fatalf("find module root: %v", err)
	}
	modulePath, err := readModulePath(filepath.Join(root, "go.mod"))
	if err != nil {
		t.Fatalf("read module path: %v", err)
	}
	return root, modulePath
}

func walkImports(t *testing.T, root string, visit func(rel, imp string)) {
	t.Helper()
	fset := token.NewFileSet()
	internalDir := filepath.Join(root, "internal")

	err := filepath.WalkDir(internalDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			switch d.Name() {
			case ".git", "vendor", "testdata":
				return filepath.SkipDir
			default:
				return nil
			}
		}
		if !strings.HasSuffix(path, ".go") {
			return nil
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)

		f, err := parser.ParseFile(fset, path, nil, parser.ImportsOnly)
		if err != nil {
			return err
		}
		for _, spec := range f.Imports {
			if spec == nil || spec.Path == nil {
				continue
			}
			imp, err := strconv.Unquote(spec.Path.Value)
			if err != nil {
				continue
			}
			visit(rel, imp)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("walk internal/: %v", err)
	}
}

func layerFor(rel string) string {
	switch {
	case strings.HasPrefix(rel, "internal/platform/"):
		return "platform"
	case strings.HasPrefix(rel, "internal/domain/"):
		return "domain"
	case strings.HasPrefix(rel, "internal/modules/"):
		return "modules"
	case strings.HasPrefix(rel, "internal/data/"):
		return "data"
	case strings.HasPrefix(rel, "internal/services/"):
		return "services"
	default:
		return ""
	}
}

func disallowedImports(modulePath string, layer string) []string {
	internal := modulePath + "/internal/"
	switch layer {
	case "platform":
		return []string{
			internal + "domain",
			internal + "modules/",
			internal + "data/",
			internal + "services",
			internal + "http/",
			internal + "app",
		}
	case "domain":
		return []string{
			internal + "modules/",
			internal + "data/",
			internal + "services",
			internal + "http/",
			internal + "app",
		}
	case "modules":
		return []string{
			internal + "data/",
			internal + "services",
			internal + "http/",
			internal + "app",
		}
	case "data":
		return []string{
			internal + "services",
			internal + "http/",
			internal + "app",
		}
	case "services":
		return []string{
			internal + "http/",
			internal + "app",
		}
	default:
		return nil
	}
}

func findModuleRoot(start string) (string, error) {
	dir := start
	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", fmt.Errorf("go.mod not found from %s", start)
		}
		dir = parent
	}
}

func readModulePath(goModPath string) (string, error) {
	f, err := os.Open(goModPath)
	if err != nil {
		return "", err
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "//") {
			continue
		}
		if !strings.HasPrefix(line, "module ") {
			continue
		}
		mp := strings.TrimSpace(strings.TrimPrefix(line, "module "))
		if mp == "" {
			return "", fmt.Errorf("empty module path in %s", goModPath)
		}
		return mp, nil
	}
	if err := scanner.Err(); err != nil {
		return "", err
	}
	return "", fmt.Errorf("module path not found in %s", goModPath)
}
