package lineage

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"
)

// ErrInvalidDefinition is matched by every error returned from Parse.
var ErrInvalidDefinition = errors.New("invalid lineage definition")

// DefinitionError describes a malformed lineage definition file.
type DefinitionError struct {
	Message string
}

func (e *DefinitionError) Error() string { return e.Message }

// Is reports whether target is ErrInvalidDefinition.
func (e *DefinitionError) Is(target error) bool { return target == ErrInvalidDefinition }

func definitionErrorf(format string, args ...any) error {
	return &DefinitionError{Message: fmt.Sprintf(format, args...)}
}

// Mode controls whether sublineage expansion descends into recombinant
// lineages, i.e. lineages with more than one parent.
type Mode uint8

const (
	// DoNotFollow never includes a recombinant below the queried lineage.
	DoNotFollow Mode = iota
	// FollowIfFullyContainedInClade includes a recombinant when the most
	// recent common ancestor of all its parents is a descendant of the
	// queried lineage.
	FollowIfFullyContainedInClade
	// AlwaysFollow includes a recombinant below any of its parents.
	AlwaysFollow

	numModes
)

var modeNames = [...]string{
	DoNotFollow:                   "doNotFollow",
	FollowIfFullyContainedInClade: "followIfFullyContainedInClade",
	AlwaysFollow:                  "alwaysFollow",
}

func (m Mode) String() string {
	if m < numModes {
		return modeNames[m]
	}
	return fmt.Sprintf("Mode(%d)", uint8(m))
}

// ParseMode parses the name of a Mode.
func ParseMode(s string) (Mode, bool) {
	for i, name := range modeNames {
		if name == s {
			return Mode(i), true
		}
	}
	return 0, false
}

// ModeNames returns the valid mode names.
func ModeNames() []string { return slices.Clone(modeNames[:]) }

// Index is an immutable lineage hierarchy. A lineage may have several
// parents. Sublineage closures are computed once in Parse, so an Index is
// safe for concurrent use.
type Index struct {
	raw     []byte
	names   []string
	ids     map[string]int
	aliases map[string]int
	// aliasesOf[id] lists the aliases of a lineage in definition order.
	aliasesOf [][]string
	parents   [][]int
	// descendants[mode][id] is the sorted closure of id including itself.
	descendants [numModes][][]string
}

type definition struct {
	name    string
	parents []string
	aliases []string
}

// Parse reads a lineage definition file of the form
//
//	B.1:
//	  aliases: [ b1 ]
//	  parents: [ B ]
//
// A lineage without parents may have an empty or null definition.
func Parse(data []byte) (*Index, error) {
	defs, err := decode(data)
	if err != nil {
		return nil, err
	}

	ix := &Index{
		raw:       slices.Clone(data),
		ids:       make(map[string]int, len(defs)),
		aliases:   make(map[string]int),
		aliasesOf: make([][]string, len(defs)),
		parents:   make([][]int, len(defs)),
	}
	for i, d := range defs {
		if _, ok := ix.ids[d.name]; ok {
			return nil, definitionErrorf("The lineage definitions contain the duplicate lineage '%s'", d.name)
		}
		ix.ids[d.name] = i
		ix.names = append(ix.names, d.name)
	}
	for i, d := range defs {
		for _, alias := range d.aliases {
			if _, ok := ix.lookup(alias); ok {
				return nil, definitionErrorf(
					"The alias '%s' for lineage '%s' is already defined as a lineage or another alias.", alias, d.name)
			}
			ix.aliases[alias] = i
			ix.aliasesOf[i] = append(ix.aliasesOf[i], alias)
		}
	}

	children := make([][]int, len(defs))
	for i, d := range defs {
		for _, p := range d.parents {
			pid, ok := ix.lookup(p)
			if !ok {
				return nil, definitionErrorf(
					"The lineage '%s' which is specified as the parent of vertex '%s' does not have a definition itself.",
					p, d.name)
			}
			ix.parents[i] = append(ix.parents[i], pid)
			children[pid] = append(children[pid], i)
		}
	}

	if cycle := findCycle(children); cycle != nil {
		path := make([]string, len(cycle))
		for i, id := range cycle {
			path[i] = ix.names[id]
		}
		return nil, definitionErrorf("The given LineageTree contains the cycle: %s", strings.Join(path, " -> "))
	}

	ix.computeClosures(children)
	return ix, nil
}

func decode(data []byte) ([]definition, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, definitionErrorf("The lineage definitions are not valid YAML: %v", err)
	}
	if len(doc.Content) == 0 {
		return nil, nil
	}
	root := doc.Content[0]
	if root.Kind != yaml.MappingNode {
		return nil, definitionErrorf("The lineage definitions must be a YAML map of lineage names")
	}

	defs := make([]definition, 0, len(root.Content)/2)
	for i := 0; i+1 < len(root.Content); i += 2 {
		key, value := root.Content[i], root.Content[i+1]
		if key.Kind != yaml.ScalarNode {
			return nil, definitionErrorf("Could not parse Lineage definition name at line %d, as it is not a string.", key.Line)
		}
		d := definition{name: key.Value}
		if value.Kind == yaml.ScalarNode && value.Tag == "!!null" {
			defs = append(defs, d)
			continue
		}
		if value.Kind != yaml.MappingNode {
			return nil, definitionErrorf("The lineage '%s' is not defined as a valid YAML Map in its definition", d.name)
		}
		for j := 0; j+1 < len(value.Content); j += 2 {
			field, list := value.Content[j].Value, value.Content[j+1]
			var dst *[]string
			switch field {
			case "parents":
				dst = &d.parents
			case "aliases":
				dst = &d.aliases
			default:
				return nil, definitionErrorf(
					"The definition of lineage '%s' may only contain the fields 'parents' and 'aliases', it also contains invalid fields: %s",
					d.name, field)
			}
			if list.Kind == yaml.ScalarNode && list.Tag == "!!null" {
				continue
			}
			if list.Kind != yaml.SequenceNode {
				return nil, definitionErrorf("The %s of lineage '%s' are not defined as a YAML Sequence", field, d.name)
			}
			for _, item := range list.Content {
				if item.Kind != yaml.ScalarNode {
					return nil, definitionErrorf("The %s of lineage '%s' must be strings", field, d.name)
				}
				*dst = append(*dst, item.Value)
			}
		}
		defs = append(defs, d)
	}
	return defs, nil
}

// findCycle runs an iterative depth-first search over parent to child edges,
// starting vertices in definition order. It returns the cycle as a closed
// path beginning at its first vertex, or nil.
func findCycle(children [][]int) []int {
	n := len(children)
	visited := make([]bool, n)
	onStack := make([]bool, n)
	next := make([]int, n)

	for start := range n {
		if visited[start] {
			continue
		}
		stack := []int{start}
		visited[start] = true
		onStack[start] = true
		for len(stack) > 0 {
			v := stack[len(stack)-1]
			advanced := false
			for next[v] < len(children[v]) {
				c := children[v][next[v]]
				next[v]++
				if onStack[c] {
					stack = append(stack, c)
					first := slices.Index(stack, c)
					return stack[first:]
				}
				if !visited[c] {
					visited[c] = true
					onStack[c] = true
					stack = append(stack, c)
					advanced = true
					break
				}
			}
			if !advanced {
				stack = stack[:len(stack)-1]
				onStack[v] = false
			}
		}
	}
	return nil
}

// computeClosures inverts the per-mode ancestor sets of every lineage into
// sorted descendant lists.
func (ix *Index) computeClosures(children [][]int) {
	n := len(ix.names)
	order := topologicalOrder(ix.parents, children)
	rank := make([]int, n)
	for r, id := range order {
		rank[id] = r
	}
	cladeAncestor := make([]int, n)
	for id := range n {
		cladeAncestor[id] = -1
		if len(ix.parents[id]) >= 2 {
			cladeAncestor[id] = ix.commonAncestor(id, rank)
		}
	}

	for mode := range numModes {
		sets := make([][]string, n)
		for id := range n {
			for _, a := range ix.ancestors(id, mode, cladeAncestor) {
				sets[a] = append(sets[a], ix.names[id])
			}
		}
		for id := range sets {
			slices.Sort(sets[id])
		}
		ix.descendants[mode] = sets
	}
}

func (ix *Index) ancestors(id int, mode Mode, cladeAncestor []int) []int {
	seen := map[int]struct{}{}
	queue := []int{id}
	for len(queue) > 0 {
		cur := queue[len(queue)-1]
		queue = queue[:len(queue)-1]
		if _, ok := seen[cur]; ok {
			continue
		}
		seen[cur] = struct{}{}
		parents := ix.parents[cur]
		switch {
		case len(parents) == 1:
			queue = append(queue, parents[0])
		case len(parents) > 1 && mode == AlwaysFollow:
			queue = append(queue, parents...)
		case len(parents) > 1 && mode == FollowIfFullyContainedInClade && cladeAncestor[cur] >= 0:
			queue = append(queue, cladeAncestor[cur])
		}
	}
	out := make([]int, 0, len(seen))
	for a := range seen {
		out = append(out, a)
	}
	return out
}

// topologicalOrder is Kahn's algorithm over the acyclic hierarchy.
func topologicalOrder(parents, children [][]int) []int {
	indegree := make([]int, len(parents))
	var queue []int
	for id, ps := range parents {
		indegree[id] = len(ps)
		if len(ps) == 0 {
			queue = append(queue, id)
		}
	}
	order := make([]int, 0, len(parents))
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		order = append(order, cur)
		for _, c := range children[cur] {
			indegree[c]--
			if indegree[c] == 0 {
				queue = append(queue, c)
			}
		}
	}
	return order
}

// commonAncestor walks the parents of a recombinant upwards, always advancing
// the vertex of highest topological rank, until a single vertex remains. It
// returns -1 when the walk reaches a root first.
func (ix *Index) commonAncestor(id int, rank []int) int {
	frontier := map[int]struct{}{}
	seen := map[int]struct{}{}
	for _, p := range ix.parents[id] {
		frontier[p] = struct{}{}
		seen[p] = struct{}{}
	}
	for len(frontier) > 1 {
		top := -1
		for v := range frontier {
			if top < 0 || rank[v] > rank[top] {
				top = v
			}
		}
		delete(frontier, top)
		if len(ix.parents[top]) == 0 {
			return -1
		}
		for _, p := range ix.parents[top] {
			if _, ok := seen[p]; !ok {
				seen[p] = struct{}{}
				frontier[p] = struct{}{}
			}
		}
	}
	for v := range frontier {
		return v
	}
	return -1
}

func (ix *Index) lookup(name string) (int, bool) {
	if id, ok := ix.ids[name]; ok {
		return id, true
	}
	id, ok := ix.aliases[name]
	return id, ok
}

// Contains reports whether name is a lineage or an alias.
func (ix *Index) Contains(name string) bool {
	_, ok := ix.lookup(name)
	return ok
}

// Resolve maps a lineage name or alias to the lineage name.
func (ix *Index) Resolve(name string) (string, bool) {
	id, ok := ix.lookup(name)
	if !ok {
		return "", false
	}
	return ix.names[id], true
}

// Lineages returns all lineage names in definition order.
func (ix *Index) Lineages() []string { return slices.Clone(ix.names) }

// Len returns the number of lineages, aliases excluded.
func (ix *Index) Len() int { return len(ix.names) }

// Parents returns the direct parents of a lineage or alias.
func (ix *Index) Parents(name string) []string {
	id, ok := ix.lookup(name)
	if !ok {
		return nil
	}
	out := make([]string, len(ix.parents[id]))
	for i, p := range ix.parents[id] {
		out[i] = ix.names[p]
	}
	return out
}

// Aliases returns the aliases of a lineage.
func (ix *Index) Aliases(name string) []string {
	id, ok := ix.lookup(name)
	if !ok {
		return nil
	}
	return slices.Clone(ix.aliasesOf[id])
}

// Expand returns the lineage itself and all its transitive sublineages,
// sorted. Unknown names yield nil. The returned slice is shared.
func (ix *Index) Expand(name string, mode Mode) []string {
	id, ok := ix.lookup(name)
	if !ok || mode >= numModes {
		return nil
	}
	return ix.descendants[mode][id]
}

// Definition returns the definition file the index was parsed from.
func (ix *Index) Definition() []byte { return ix.raw }
