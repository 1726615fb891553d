// Package all imports all dynamic field loaders.
//
// Import this package for its side effects to register every source kind:
//
//	import (
//		"github.com/git-pkgs/tfaot"
//		_ "github.com/git-pkgs/tfaot/all"
//	)
//
//	// Now all loaders are available
//	kinds := tfaot.SupportedKinds()
//	// ["attr", "file"]
package all

import (
	_ "github.com/git-pkgs/tfaot/internal/attr"
	_ "github.com/git-pkgs/tfaot/internal/file"
)
