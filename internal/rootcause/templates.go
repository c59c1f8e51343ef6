package rootcause

// causeTemplate is one entry of the canned cause catalog. Templates are kept
// apart from the tree-building code so wording can change without touching
// the algorithm.
type causeTemplate struct {
	description string
	category    string // technical, process, human, external
	confidence  float64
	chain       []causeTemplate
}

// causeCatalog maps entry types onto root-cause templates. The chain holds
// successively deeper child causes appended while depth allows.
var causeCatalog = map[string]causeTemplate{
	"phishing": {
		description: "phishing message delivered to an internal user",
		category:    "human",
		confidence:  0.8,
		chain: []causeTemplate{
			{description: "user clicked a malicious link or attachment", category: "human", confidence: 0.7},
			{description: "insufficient security awareness training", category: "process", confidence: 0.6},
		},
	},
	"exploit": {
		description: "public-facing application exploited",
		category:    "technical",
		confidence:  0.8,
		chain: []causeTemplate{
			{description: "unpatched vulnerability on an exposed service", category: "technical", confidence: 0.7},
			{description: "delayed patch management process", category: "process", confidence: 0.6},
		},
	},
	"credential_compromise": {
		description: "valid credentials abused for initial access",
		category:    "process",
		confidence:  0.8,
	},
	"supply_chain": {
		description: "compromised third-party component introduced",
		category:    "external",
		confidence:  0.8,
	},
	"misconfiguration": {
		description: "security misconfiguration exposed the environment",
		category:    "technical",
		confidence:  0.6,
	},
	"insider": {
		description: "actions of an internal user enabled the intrusion",
		category:    "human",
		confidence:  0.7,
	},
}

// segmentationTemplate is appended under every root regardless of entry type;
// its evidence comes from lateral-movement-phase events.
var segmentationTemplate = causeTemplate{
	description: "insufficient network segmentation allowed lateral spread",
	category:    "technical",
	confidence:  0.6,
}

func templateFor(entryType string) causeTemplate {
	if t, ok := causeCatalog[entryType]; ok {
		return t
	}
	return causeCatalog["misconfiguration"]
}
