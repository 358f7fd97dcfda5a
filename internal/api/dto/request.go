package dto

// Dispatcher
type RunScheduleRequest struct {
	Emergency bool `json:"emergency,omitempty"`
}

// Settings
type UpdateSettingRequest struct {
	Value string `json:"value" validate:"required,max=255"`
}
