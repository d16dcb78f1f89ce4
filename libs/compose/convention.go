package compose

import "github.com/iancoleman/strcase"

// inferLifetime implements the convention engine (C9, spec §4.9): a
// provider with no explicit lifetime gets one inferred from the suffix of
// its concrete type name.
func inferLifetime(typeName string) Lifetime {
	switch {
	case hasSuffix(typeName, "Service"):
		return Singleton
	case hasSuffix(typeName, "Repository"):
		return Scoped
	case hasSuffix(typeName, "Factory"):
		return Transient
	default:
		return Transient
	}
}

// hasSuffix compares on the snake_case form via strcase so that the
// convention engine is insensitive to the surrounding package-qualified
// name Go's reflect package reports (e.g. "pkg.UserService" as well as
// bare "UserService" both end in "_service" once snake-cased).
func hasSuffix(typeName, suffix string) bool {
	snakeType := strcase.ToSnake(lastSegment(typeName))
	snakeSuffix := strcase.ToSnake(suffix)
	if len(snakeType) < len(snakeSuffix) {
		return false
	}
	return snakeType[len(snakeType)-len(snakeSuffix):] == snakeSuffix
}

// lastSegment strips a leading "pkg." qualifier and "*" pointer marker
// from a reflect.Type.String() result, leaving the bare type name the
// convention engine is meant to inspect.
func lastSegment(typeName string) string {
	start := 0
	for i := len(typeName) - 1; i >= 0; i-- {
		switch typeName[i] {
		case '.':
			return typeName[i+1:]
		case '*':
			if start == 0 {
				start = i + 1
			}
		}
	}
	if start > 0 {
		return typeName[start:]
	}
	return typeName
}

func resolveLifetime(explicit *Lifetime, typeName string) Lifetime {
	if explicit != nil {
		return *explicit
	}
	return inferLifetime(typeName)
}
