package shaders

import (
	_ "embed"
)

//go:embed contree_march.wgsl
var ContreeMarchWGSL string

//go:embed fullscreen.wgsl
var FullscreenWGSL string
