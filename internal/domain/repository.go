package domain

type ActionRepository interface {
	SaveAction(rec *ActionRecord) error
	FinishAction(id string, outcome Outcome, errText string) error
	ListActions(serverID string, limit int) ([]ActionRecord, error)
}

type SettingRepository interface {
	GetSetting(key string) (string, error)
	SetSetting(key string, value string) error
	GetPortRange() (int, int, error)
	SetPortRange(start int, end int) error
}

type Repository interface {
	ActionRepository
	SettingRepository
}
