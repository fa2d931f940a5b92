package native

import (
	"github.com/gogpu/rhi"
)

// BackendName is the name the backend registers under.
const BackendName = "native"

// init registers the native backend on package import, so rhi.Open("")
// selects it.
//
// The HAL backends it opens must be registered too. Import them with:
//
//	import _ "github.com/gogpu/wgpu/hal/allbackends"
func init() {
	rhi.Register(BackendName, func() rhi.GraphicsDevice {
		return New()
	})
}
