package facts

// Delta captures added and removed fact rows between two snapshots.
type Delta struct {
	Added   Tables `json:"added"`
	Removed Tables `json:"removed"`
}

// ComputeDelta computes row-level additions and removals between two snapshots.
func ComputeDelta(prev, next Tables) Delta {
	return Delta{
		Added:   diffTables(prev, next),
		Removed: diffTables(next, prev),
	}
}

func diffTables(from, to Tables) Tables {
	out := emptyTables()

	out.Files = diffFileRows(from.Files, to.Files)
	out.Modules = diffModuleRows(from.Modules, to.Modules)
	out.Packages = diffPackageRows(from.Packages, to.Packages)
	out.Ports = diffPortRows(from.Ports, to.Ports)
	out.Parameters = diffParameterRows(from.Parameters, to.Parameters)
	out.Instances = diffInstanceRows(from.Instances, to.Instances)
	out.Connections = diffConnectionRows(from.Connections, to.Connections)
	out.Symbols = diffSymbolRows(from.Symbols, to.Symbols)

	return out
}

func emptyTables() Tables {
	return Tables{
		Files:       []FileRow{},
		Modules:     []ModuleRow{},
		Packages:    []PackageRow{},
		Ports:       []PortRow{},
		Parameters:  []ParameterRow{},
		Instances:   []InstanceRow{},
		Connections: []ConnectionRow{},
		Symbols:     []SymbolRow{},
	}
}

func diffFileRows(from, to []FileRow) []FileRow {
	return diffRows(from, to, func(r FileRow) string {
		return r.Path + "|" + r.Library + "|" + boolKey(r.IsThirdParty)
	})
}

func diffModuleRows(from, to []ModuleRow) []ModuleRow {
	return diffRows(from, to, func(r ModuleRow) string {
		return r.Name + "|" + r.File + "|" + boolKey(r.Documented) + "|" + intKey(r.NumPorts) + "|" + intKey(r.NumParams)
	})
}

func diffPackageRows(from, to []PackageRow) []PackageRow {
	return diffRows(from, to, func(r PackageRow) string {
		return r.Name + "|" + r.File + "|" + intKey(r.NumParams)
	})
}

func diffPortRows(from, to []PortRow) []PortRow {
	return diffRows(from, to, func(r PortRow) string {
		return r.Module + "|" + r.Name + "|" + r.Direction + "|" + r.DataKind + "|" + r.DataType + "|" +
			r.NetType + "|" + r.Signedness + "|" + r.Packed + "|" + r.Unpacked + "|" +
			boolKey(r.Documented) + "|" + r.File
	})
}

func diffParameterRows(from, to []ParameterRow) []ParameterRow {
	return diffRows(from, to, func(r ParameterRow) string {
		return r.Scope + "|" + r.ScopeKind + "|" + r.Name + "|" + r.Kind + "|" + r.DataType + "|" +
			r.Value + "|" + boolKey(r.HasDefault) + "|" + boolKey(r.Documented) + "|" + r.File
	})
}

func diffInstanceRows(from, to []InstanceRow) []InstanceRow {
	return diffRows(from, to, func(r InstanceRow) string {
		return r.Module + "|" + r.Name + "|" + r.Target + "|" + r.Path + "|" + r.File
	})
}

func diffConnectionRows(from, to []ConnectionRow) []ConnectionRow {
	return diffRows(from, to, func(r ConnectionRow) string {
		return r.Instance + "|" + r.Port + "|" + r.Expr + "|" + boolKey(r.Positional) + "|" + r.File
	})
}

func diffSymbolRows(from, to []SymbolRow) []SymbolRow {
	return diffRows(from, to, func(r SymbolRow) string {
		return r.Name + "|" + r.Kind + "|" + r.File
	})
}

func diffRows[T any](from, to []T, key func(T) string) []T {
	fromSet := make(map[string]T, len(from))
	for _, row := range from {
		fromSet[key(row)] = row
	}
	var diff []T
	for _, row := range to {
		rowKey := key(row)
		if _, ok := fromSet[rowKey]; !ok {
			diff = append(diff, row)
		}
	}
	if diff == nil {
		diff = []T{}
	}
	return diff
}

func boolKey(v bool) string {
	if v {
		return "1"
	}
	return "0"
}

func intKey(v int) string {
	if v == 0 {
		return "0"
	}
	return itoa(v)
}

func itoa(v int) string {
	if v == 0 {
		return "0"
	}
	neg := v < 0
	if neg {
		v = -v
	}
	var buf [20]byte
	i := len(buf)
	for v > 0 {
		i--
		buf[i] = byte('0' + v%10)
		v /= 10
	}
	if neg {
		i--
		buf[i] = '-'
	}
	return string(buf[i:])
}
