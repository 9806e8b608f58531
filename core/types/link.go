package types

// Link is a directed, tagged relation between two addressed entries.
type Link struct {
	Base   Address `json:"base"`
	Target Address `json:"target"`
	Tag    string  `json:"tag"`
}

// NewLink creates a link from base to target under the given tag.
func NewLink(base, target Address, tag string) Link {
	return Link{Base: base, Target: target, Tag: tag}
}

// LinkAttribute is the EAV attribute under which live links with the given
// tag are stored.
func LinkAttribute(tag string) string {
	return "link__" + tag
}

// RemovedLinkAttribute is the EAV attribute marking a link as removed.
func RemovedLinkAttribute(tag string) string {
	return "removed_link__" + tag
}
