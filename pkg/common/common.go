package common

// Node is a persisted graph entity. Name is the canonical name and the
// deduplication key: no two nodes share a Name. ID is assigned by the store
// when the node is first created and never changes afterwards.
//
// Type is the optional category annotation that was attached to the name at
// extraction time, e.g. "Person" for "Ada Lovelace (Person)".
type Node struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Type string `json:"type,omitempty"`
}

// Edge is a persisted, directed relationship between two nodes.
// SourceID and TargetID always reference existing node IDs.
type Edge struct {
	ID       string `json:"id"`
	SourceID string `json:"source"`
	TargetID string `json:"target"`
	Label    string `json:"label"`
}

// DefaultLabel is used for relationships without a label or type tag.
const DefaultLabel = "related"

// RawNode is a single node entry as produced by the extractor. Either ID or
// Name identifies the node; ID wins when both are present.
type RawNode struct {
	ID   string `json:"id,omitempty"`
	Name string `json:"name,omitempty"`
	Type string `json:"type,omitempty"`
}

// Identifier returns the raw identifier of the node entry and whether one
// was present at all.
func (n RawNode) Identifier() (string, bool) {
	if n.ID != "" {
		return n.ID, true
	}
	if n.Name != "" {
		return n.Name, true
	}
	return "", false
}

// RawRelationship is a single relationship entry as produced by the
// extractor. The Has* flags record which keys were present in the input so
// that "first present key wins" can be applied after decoding.
type RawRelationship struct {
	Source    string `json:"source,omitempty"`
	HasSource bool   `json:"-"`
	From      string `json:"from,omitempty"`
	HasFrom   bool   `json:"-"`
	Target    string `json:"target,omitempty"`
	HasTarget bool   `json:"-"`
	To        string `json:"to,omitempty"`
	HasTo     bool   `json:"-"`
	Label     string `json:"label,omitempty"`
	HasLabel  bool   `json:"-"`
	Type      string `json:"type,omitempty"`
	HasType   bool   `json:"-"`
}

// Endpoints returns the source and target identifiers of the relationship
// following the key precedence source > from and target > to. ok is false
// when either endpoint has no key at all.
func (r RawRelationship) Endpoints() (source string, target string, ok bool) {
	switch {
	case r.HasSource:
		source = r.Source
	case r.HasFrom:
		source = r.From
	default:
		return "", "", false
	}
	switch {
	case r.HasTarget:
		target = r.Target
	case r.HasTo:
		target = r.To
	default:
		return "", "", false
	}
	return source, target, true
}

// EdgeLabel returns the relationship label following the key precedence
// label > type > DefaultLabel.
func (r RawRelationship) EdgeLabel() string {
	switch {
	case r.HasLabel:
		return r.Label
	case r.HasType:
		return r.Type
	default:
		return DefaultLabel
	}
}

// RawRecord is one extraction result. Both lists are optional.
type RawRecord struct {
	Nodes         []RawNode         `json:"nodes,omitempty"`
	Relationships []RawRelationship `json:"relationships,omitempty"`
}

// GraphView is the read model served to visualization clients.
type GraphView struct {
	Nodes []NodeView `json:"nodes"`
	Edges []EdgeView `json:"edges"`
}

// NodeView is a node with its display name and type split apart. Type is
// nil when the node carries no type annotation and is rendered as null.
type NodeView struct {
	ID   string  `json:"id"`
	Name string  `json:"name"`
	Type *string `json:"type"`
}

// EdgeView is an edge projected for visualization clients.
type EdgeView struct {
	ID    string `json:"id"`
	From  string `json:"from"`
	To    string `json:"to"`
	Label string `json:"label"`
}
