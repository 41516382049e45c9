package model

// Key and IndexValue let the storage layer persist records without knowing
// their concrete type. Index names match the JSON field names.

func (t Task) Key() string { return t.ID }

func (t Task) IndexValue(index string) string {
	switch index {
	case "date":
		return t.Date
	case "projectId":
		return t.ProjectID
	}
	return ""
}

func (p Project) Key() string { return p.ID }

func (p Project) IndexValue(index string) string {
	if index == "name" {
		return p.Name
	}
	return ""
}

func (d DailyTask) Key() string { return d.ID }

func (d DailyTask) IndexValue(index string) string {
	if index == "date" {
		return d.Date
	}
	return ""
}
