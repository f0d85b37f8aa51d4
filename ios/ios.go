// Package ios registers the iOS companion app integration. Importing it for side effects registers its discovery flow
// with flow.DefaultRegistry:
//
//	import _ "github.com/nlowe/hglue/ios"
package ios

import "github.com/nlowe/hglue/flow"

const (
	Domain = "ios"
	Title  = "Home Assistant iOS"
)

func init() {
	flow.RegisterDiscoveryFlow(Domain, Title, flow.Always)
}
