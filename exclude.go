package flame

import (
	"net/url"
	"strings"

	"github.com/go-stack/stack"
)

// selfPackage is the import path of this package, derived from a symbol in it.
var selfPackage = func() string {
	return packagePath(stack.Caller(0).Frame().Function)
}()

// exclusions is a set of package import paths whose probes are ignored.
// Entries ending in "/..." match the package and every package below it.
type exclusions struct {
	exact    map[string]struct{}
	prefixes []string
}

func newExclusions(pkgs ...string) *exclusions {
	e := &exclusions{exact: map[string]struct{}{}}
	e.add(selfPackage)
	e.add(pkgs...)
	return e
}

func (e *exclusions) add(pkgs ...string) {
	for _, pkg := range pkgs {
		pkg = strings.TrimSpace(pkg)
		switch {
		case pkg == "":
			continue
		case strings.HasSuffix(pkg, "/..."):
			root := strings.TrimSuffix(pkg, "/...")
			e.exact[root] = struct{}{}
			e.prefixes = append(e.prefixes, root+"/")
		default:
			e.exact[pkg] = struct{}{}
		}
	}
}

func (e *exclusions) excludes(pkg string) bool {
	if _, ok := e.exact[pkg]; ok {
		return true
	}
	for _, prefix := range e.prefixes {
		if strings.HasPrefix(pkg, prefix) {
			return true
		}
	}
	return false
}

// packagePath returns the import path of the package that defines the
// function with the given fully qualified name, e.g.
// "github.com/a/b.(*T).Method" → "github.com/a/b".
//
// Runtime function names escape dots in the last element of the import path,
// so "gopkg.in/yaml.v3" appears as "gopkg.in/yaml%2ev3". The returned path is
// unescaped, to compare equal to paths given to WithExclude.
func packagePath(funcName string) string {
	const pathSep = "/"
	const pkgSep = "."
	lastSlash := strings.LastIndex(funcName, pathSep)
	rest := funcName[lastSlash+1:]
	pkg := funcName
	if dot := strings.Index(rest, pkgSep); dot >= 0 {
		pkg = funcName[:lastSlash+1+dot]
	}
	if strings.Contains(pkg, "%") {
		if unescaped, err := url.PathUnescape(pkg); err == nil {
			pkg = unescaped
		}
	}
	return pkg
}
