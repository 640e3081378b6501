package registry

import "sort"

// Dependents returns the templates that nest id directly, ordered by id.
func (r *TemplateRegistry) Dependents(id TemplateID) []TemplateID {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	seen := make(map[TemplateID]bool)
	for _, l := range r.links {
		if l.Source == id {
			seen[l.Target] = true
		}
	}

	return sortedIDs(seen)
}

// Dependencies returns the templates id nests directly, ordered by id.
func (r *TemplateRegistry) Dependencies(id TemplateID) []TemplateID {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	t, ok := r.templates[id]
	if !ok {
		return nil
	}

	seen := make(map[TemplateID]bool)
	for _, linkID := range t.Links {
		if l, ok := r.links[linkID]; ok {
			seen[l.Source] = true
		}
	}

	return sortedIDs(seen)
}

// DependencyGraph returns, for every template path, the sorted paths of the
// templates it nests.
func (r *TemplateRegistry) DependencyGraph() map[string][]string {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	graph := make(map[string][]string, len(r.templates))
	for _, t := range r.templates {
		deps := make(map[string]bool)
		for _, linkID := range t.Links {
			l, ok := r.links[linkID]
			if !ok {
				continue
			}
			if src, ok := r.templates[l.Source]; ok {
				deps[src.Path] = true
			}
		}

		paths := make([]string, 0, len(deps))
		for p := range deps {
			paths = append(paths, p)
		}
		sort.Strings(paths)
		graph[t.Path] = paths
	}

	return graph
}

// DetectCycles returns the nesting cycles present in the registry. Each
// cycle starts and ends with the same path. The loader never creates cycles,
// so a non-empty result points at links made outside of it.
func (r *TemplateRegistry) DetectCycles() [][]string {
	var cycles [][]string
	graph := r.DependencyGraph()

	nodes := make([]string, 0, len(graph))
	for p := range graph {
		nodes = append(nodes, p)
	}
	sort.Strings(nodes)

	visited := make(map[string]bool)
	recStack := make(map[string]bool)

	for _, node := range nodes {
		if !visited[node] {
			if cycle := detectCycleDFS(node, graph, visited, recStack, nil); cycle != nil {
				cycles = append(cycles, cycle)
			}
		}
	}

	return cycles
}

func detectCycleDFS(node string, graph map[string][]string, visited, recStack map[string]bool, path []string) []string {
	visited[node] = true
	recStack[node] = true
	path = append(path, node)

	for _, dep := range graph[node] {
		if !visited[dep] {
			if cycle := detectCycleDFS(dep, graph, visited, recStack, path); cycle != nil {
				return cycle
			}
		} else if recStack[dep] {
			for i, p := range path {
				if p == dep {
					cycle := make([]string, len(path)-i+1)
					copy(cycle, path[i:])
					cycle[len(cycle)-1] = dep
					return cycle
				}
			}
		}
	}

	recStack[node] = false
	return nil
}

func sortedIDs(set map[TemplateID]bool) []TemplateID {
	ids := make([]TemplateID, 0, len(set))
	for id := range set {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}
