package assets

import (
	"embed"
	"io/fs"
)

//go:embed templates static
var embedded embed.FS

// Templates returns the page templates with the "templates" prefix stripped.
func Templates() fs.FS {
	return sub("templates")
}

// Static returns the stylesheet and scripts served under /static.
func Static() fs.FS {
	return sub("static")
}

func sub(dir string) fs.FS {
	f, err := fs.Sub(embedded, dir)
	if err != nil {
		// Unreachable: dir is embedded above.
		panic(err)
	}
	return f
}
