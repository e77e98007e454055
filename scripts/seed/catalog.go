package main

import (
	_ "embed"
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/lingvodoc/lingvodoc/internal/acl"
)

//go:embed basegroups.yaml
var defaultCatalog []byte

// BaseGroup is one entry of the base-group catalog.
type BaseGroup struct {
	Name               string `yaml:"name"`
	Subject            string `yaml:"subject"`
	Action             string `yaml:"action"`
	DictionaryDefault  bool   `yaml:"dictionary_default"`
	PerspectiveDefault bool   `yaml:"perspective_default"`
}

type catalog struct {
	BaseGroups []BaseGroup `yaml:"basegroups"`
}

var knownSubjects = map[string]struct{}{
	acl.SubjectDictionary: {}, acl.SubjectLanguage: {}, acl.SubjectPerspective: {},
	acl.SubjectOrganization: {}, acl.SubjectLexicalEntries: {}, acl.SubjectApproveEntities: {},
	acl.SubjectMerge: {}, acl.SubjectTranslations: {}, acl.SubjectGrant: {},
	acl.SubjectDictionaryStatus: {}, acl.SubjectPerspectiveStatus: {},
}

var knownActions = map[string]struct{}{
	acl.ActionView: {}, acl.ActionCreate: {}, acl.ActionEdit: {},
	acl.ActionDelete: {}, acl.ActionApprove: {}, acl.ActionPreview: {},
}

// parseCatalog decodes and validates a catalog. Subjects and actions must be
// known to the engine and each (subject, action) pair may appear once.
func parseCatalog(data []byte) ([]BaseGroup, error) {
	var c catalog
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("seed: decode catalog: %w", err)
	}
	seen := make(map[[2]string]string, len(c.BaseGroups))
	for i, bg := range c.BaseGroups {
		if bg.Name == "" {
			return nil, fmt.Errorf("seed: base group %d has no name", i)
		}
		if _, ok := knownSubjects[bg.Subject]; !ok {
			return nil, fmt.Errorf("seed: %q: unknown subject %q", bg.Name, bg.Subject)
		}
		if _, ok := knownActions[bg.Action]; !ok {
			return nil, fmt.Errorf("seed: %q: unknown action %q", bg.Name, bg.Action)
		}
		key := [2]string{bg.Subject, bg.Action}
		if other, dup := seen[key]; dup {
			return nil, fmt.Errorf("seed: %q duplicates %q", bg.Name, other)
		}
		seen[key] = bg.Name
	}
	return c.BaseGroups, nil
}
