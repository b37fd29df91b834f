package features

// ImplementedAuthFeatures lists the providers this build can actually serve.
// A provider enabled in env but missing here is ignored.
var ImplementedAuthFeatures = map[string]bool{
	"local":  true,
	"oauth":  true,
	"google": true,
	"github": false,
}
