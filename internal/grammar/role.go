package grammar

// Role is the closed set of dependency roles the extractor cares about.
type Role int

const (
	RoleNone Role = iota
	RoleSubject
	RoleObject
	RolePreposition
	RolePrepObject
)

var roleByDep = map[string]Role{
	"nsubj":     RoleSubject,
	"nsubjpass": RoleSubject,
	"csubj":     RoleSubject,
	"expl":      RoleSubject,
	"dobj":      RoleObject,
	"obj":       RoleObject,
	"iobj":      RoleObject,
	"attr":      RoleObject,
	"oprd":      RoleObject,
	"dative":    RoleObject,
	"prep":      RolePreposition,
	"pobj":      RolePrepObject,
}

// ResolveRole maps a raw dependency label onto a Role. Labels are matched exactly.
func ResolveRole(dep string) Role {
	return roleByDep[dep]
}

// IsVerbArgumentObject reports whether a verb's direct child with this role
// counts as the verb's object. A bare pobj attached to a verb does.
func (r Role) IsVerbArgumentObject() bool {
	return r == RoleObject || r == RolePrepObject
}

func (r Role) String() string {
	switch r {
	case RoleSubject:
		return "subject"
	case RoleObject:
		return "object"
	case RolePreposition:
		return "preposition"
	case RolePrepObject:
		return "prep_object"
	default:
		return "none"
	}
}

// Role returns the resolved role of token i.
func (s *Sentence) Role(i int) Role {
	return ResolveRole(s.Tokens[i].Dep)
}
