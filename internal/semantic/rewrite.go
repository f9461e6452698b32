package semantic

// RewriteDeviceArg resolves args[sourceKey] (a human-typed device
// reference) to its canonical id, stored under targetKey, preserving the
// original string under "_"+sourceKey+"_name" and recording the match
// type under "_match_type". Unresolvable references are left untouched.
func (r *Resolver) RewriteDeviceArg(args map[string]any, sourceKey, targetKey string) {
	raw, ok := args[sourceKey].(string)
	if !ok || raw == "" {
		return
	}
	res, err := r.ResolveDevice(raw)
	if err != nil {
		return
	}
	if sourceKey != targetKey {
		delete(args, sourceKey)
	}
	args[targetKey] = res.DeviceID
	args["_"+sourceKey+"_name"] = raw
	args["_match_type"] = string(res.MatchType)
}
