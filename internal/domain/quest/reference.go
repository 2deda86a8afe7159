package quest

// Zone is one thematic station a guest can complete once.
type Zone struct {
	Name         string `yaml:"name" json:"zone_name"`
	DisplayIndex int    `yaml:"display_index" json:"display_index"`
	Title        string `yaml:"title,omitempty" json:"title,omitempty"`
}

// RewardThreshold grants RewardID the first time a guest holds Count stamps.
type RewardThreshold struct {
	Count    int    `yaml:"count" json:"threshold_count"`
	RewardID string `yaml:"reward_id" json:"reward_id"`
}
