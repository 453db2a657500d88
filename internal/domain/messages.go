package domain

import (
	"sort"
	"time"
)

const DefaultMessageFolder = "inbox"

type Message struct {
	ID             string
	Folder         string
	Subject        string
	Sender         string
	SentAt         time.Time
	Read           bool
	HasAttachments bool
}

type MessageState struct {
	Folders map[string][]Message
}

func NewMessageState() MessageState {
	return MessageState{Folders: map[string][]Message{}}
}

func (s MessageState) Folder(name string) []Message {
	return s.Folders[name]
}

func (s MessageState) FolderNames() []string {
	names := make([]string, 0, len(s.Folders))
	for name := range s.Folders {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ReplaceFolder stores the fetched messages of one folder. Other folders are
// left untouched.
func ReplaceFolder(s MessageState, folder string, messages []Message) MessageState {
	items := make([]Message, 0, len(messages))
	seen := make(map[string]struct{}, len(messages))
	for _, message := range messages {
		if message.ID == "" {
			continue
		}
		if _, ok := seen[message.ID]; ok {
			continue
		}
		seen[message.ID] = struct{}{}
		message.Folder = folder
		items = append(items, message)
	}

	folders := make(map[string][]Message, len(s.Folders)+1)
	for name, existing := range s.Folders {
		folders[name] = existing
	}
	folders[folder] = items

	return MessageState{Folders: folders}
}

// SetMessageRead flips the read flag of id in whichever folder holds it.
func SetMessageRead(s MessageState, id string, read bool) (MessageState, bool) {
	for name, messages := range s.Folders {
		for i, message := range messages {
			if message.ID != id {
				continue
			}

			updated := make([]Message, len(messages))
			copy(updated, messages)
			updated[i].Read = read

			folders := make(map[string][]Message, len(s.Folders))
			for key, existing := range s.Folders {
				folders[key] = existing
			}
			folders[name] = updated

			return MessageState{Folders: folders}, true
		}
	}

	return s, false
}

func (s MessageState) ByID(id string) (Message, bool) {
	for _, messages := range s.Folders {
		for _, message := range messages {
			if message.ID == id {
				return message, true
			}
		}
	}
	return Message{}, false
}
