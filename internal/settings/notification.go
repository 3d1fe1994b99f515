package settings

// Variant selects how a notification is presented.
type Variant string

const (
	VariantDefault     Variant = "default"
	VariantDestructive Variant = "destructive"
)

const genericSaveError = "Failed to update profile. Please try again."

// Notification is a transient message shown to the user after an action.
type Notification struct {
	Title       string
	Description string
	Variant     Variant
}

func errorNote(description string) Notification {
	return Notification{Title: "Error", Description: description, Variant: VariantDestructive}
}

func (v *View) notify(n Notification) {
	if n.Variant == "" {
		n.Variant = VariantDefault
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	v.notes = append(v.notes, n)
}

// Notifications returns and clears the queued notifications.
func (v *View) Notifications() []Notification {
	v.mu.Lock()
	defer v.mu.Unlock()
	out := v.notes
	v.notes = nil
	return out
}
