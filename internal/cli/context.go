package cli

// ctxKey namespaces context.Context values stored by main across
// commands, replacing the teacher's bare string key with a private type.
type ctxKey string

// CtxConfigKey is the context.Context key main.go stores the loaded
// *config.Config under, after the Before hook parses it.
const CtxConfigKey ctxKey = "config"

const ctxConfigKey = CtxConfigKey
