package facts

// FilterTablesByFiles returns a new Tables object containing only rows whose file
// or path is present in the provided file set.
func FilterTablesByFiles(tables Tables, files map[string]bool) Tables {
	if len(files) == 0 {
		return emptyTables()
	}
	out := emptyTables()

	for _, row := range tables.Files {
		if files[row.Path] {
			out.Files = append(out.Files, row)
		}
	}
	for _, row := range tables.Modules {
		if files[row.File] {
			out.Modules = append(out.Modules, row)
		}
	}
	for _, row := range tables.Packages {
		if files[row.File] {
			out.Packages = append(out.Packages, row)
		}
	}
	for _, row := range tables.Ports {
		if files[row.File] {
			out.Ports = append(out.Ports, row)
		}
	}
	for _, row := range tables.Parameters {
		if files[row.File] {
			out.Parameters = append(out.Parameters, row)
		}
	}
	for _, row := range tables.Instances {
		if files[row.File] {
			out.Instances = append(out.Instances, row)
		}
	}
	for _, row := range tables.Connections {
		if files[row.File] {
			out.Connections = append(out.Connections, row)
		}
	}
	for _, row := range tables.Symbols {
		if files[row.File] {
			out.Symbols = append(out.Symbols, row)
		}
	}

	return out
}

// FilterDeltaByFiles returns a new Delta containing only rows for the specified files.
func FilterDeltaByFiles(delta Delta, files map[string]bool) Delta {
	if len(files) == 0 {
		return Delta{
			Added:   emptyTables(),
			Removed: emptyTables(),
		}
	}
	return Delta{
		Added:   FilterTablesByFiles(delta.Added, files),
		Removed: FilterTablesByFiles(delta.Removed, files),
	}
}
