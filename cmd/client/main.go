// Command client is an interactive terminal harness for the client
// core. It logs in against the dev stub, bootstraps the session,
// connects the realtime channel, and exposes the chat operations as
// line commands.
package main

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/myapplejuice/final-project-the-kratos-hub-sub001/internal/api"
	"github.com/myapplejuice/final-project-the-kratos-hub-sub001/internal/chatroom"
	"github.com/myapplejuice/final-project-the-kratos-hub-sub001/internal/config"
	"github.com/myapplejuice/final-project-the-kratos-hub-sub001/internal/media"
	"github.com/myapplejuice/final-project-the-kratos-hub-sub001/internal/models"
	"github.com/myapplejuice/final-project-the-kratos-hub-sub001/internal/realtime"
	"github.com/myapplejuice/final-project-the-kratos-hub-sub001/internal/session"
	"github.com/myapplejuice/final-project-the-kratos-hub-sub001/internal/storage"
	appsync "github.com/myapplejuice/final-project-the-kratos-hub-sub001/internal/sync"
)

func main() {
	email := flag.String("email", "", "login email; skipped when a token is already stored")
	password := flag.String("password", "", "login password")
	flag.Parse()

	config.LoadDotEnv()
	cfg := config.Load()

	fileStore, err := storage.NewFileStore(cfg.DataDir)
	if err != nil {
		log.Fatalf("open data dir: %v", err)
	}
	secure := storage.NewSecureStore(fileStore, cfg.StorageSecret)

	ctx := context.Background()

	// The manager and the API client need each other: the client reads
	// the token from the manager, the manager fetches the profile
	// through the client. Both share the same stores, so building the
	// client against a fetcherless manager is safe.
	manager := session.NewManager(secure, fileStore, nil, nil)
	client := api.NewClient(cfg.APIBaseURL, cfg.RequestTimeout, manager)
	manager = session.NewManager(secure, fileStore, client, func() {
		fmt.Println("session cleared")
	})

	token := manager.Token()
	if token == "" {
		if *email == "" || *password == "" {
			log.Fatal("no stored session; pass -email and -password to log in")
		}
		token, err = login(cfg.APIBaseURL, *email, *password)
		if err != nil {
			log.Fatalf("login failed: %v", err)
		}
	}

	profile, ok := manager.InitSession(ctx, token)
	if !ok {
		log.Fatal("session bootstrap failed")
	}
	fmt.Printf("hello %s %s (%d friends)\n", profile.FirstName, profile.LastName, len(profile.Friends))

	state := appsync.NewProfileState(*profile)
	channel := realtime.NewChannel(cfg.WSURL, manager)
	if err := channel.Connect(ctx); err != nil {
		log.Fatalf("realtime connect: %v", err)
	}
	unbind := appsync.Bind(channel, state)
	defer unbind()
	defer channel.Disconnect()

	var uploader *media.Uploader
	if cfg.UploadURL != "" {
		uploader = media.NewUploader(cfg.UploadURL, cfg.UploadPreset, cfg.RequestTimeout)
	}

	runShell(ctx, client, channel, state, manager, uploader, cfg.UploadFolder, profile.ID)
}

// login exchanges credentials for a token at the stub's login route.
func login(baseURL, email, password string) (string, error) {
	body, _ := json.Marshal(map[string]string{"email": email, "password": password})
	resp, err := http.Post(baseURL+"/auth/login", "application/json", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	var envelope struct {
		Success bool   `json:"success"`
		Message string `json:"message"`
		Data    struct {
			Token string `json:"token"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return "", err
	}
	if !envelope.Success {
		return "", fmt.Errorf("login rejected: %s", envelope.Message)
	}
	return envelope.Data.Token, nil
}

func runShell(ctx context.Context, client *api.Client, channel *realtime.Channel, state *appsync.ProfileState, manager *session.Manager, uploader *media.Uploader, uploadFolder string, viewerID string) {
	var room *chatroom.Room

	fmt.Println("commands: friends | open <friendId> | send <text> | upload <file> | more | messages | close | prefs | set <key> <value> | logout | quit")
	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			break
		}
		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 {
			continue
		}

		switch fields[0] {
		case "friends":
			for _, f := range state.User().Friends {
				fmt.Printf("%s %s [%s] unread=%d last=%q\n", f.FirstName, f.LastName, f.FriendID, f.UnreadCount, f.LastMessageText)
			}
		case "open":
			if len(fields) < 2 {
				fmt.Println("usage: open <friendId>")
				continue
			}
			if room != nil {
				room.Close()
			}
			room = chatroom.NewRoom(channel, client, state, viewerID, fields[1])
			if err := room.Open(ctx); err != nil {
				fmt.Printf("open failed: %v\n", err)
				room = nil
				continue
			}
			printMessages(room.Messages(), viewerID)
		case "send":
			if room == nil {
				fmt.Println("no open room")
				continue
			}
			if _, err := room.Send(strings.Join(fields[1:], " "), nil); err != nil {
				fmt.Printf("send failed: %v\n", err)
			}
		case "upload":
			if uploader == nil {
				fmt.Println("uploads disabled: UPLOAD_URL not set")
				continue
			}
			if len(fields) < 2 {
				fmt.Println("usage: upload <file>")
				continue
			}
			file, err := os.Open(fields[1])
			if err != nil {
				fmt.Printf("open failed: %v\n", err)
				continue
			}
			url, err := uploader.Upload(ctx, filepath.Base(fields[1]), file, uploadFolder)
			file.Close()
			if err != nil {
				fmt.Printf("upload failed: %v\n", err)
				continue
			}
			fmt.Println(url)
			if room != nil {
				extra := &models.ExtraInformation{
					Context:  media.ContextForFile(fields[1]),
					URL:      url,
					FileName: filepath.Base(fields[1]),
				}
				if _, err := room.Send("", extra); err != nil {
					fmt.Printf("share failed: %v\n", err)
				}
			}
		case "more":
			if room == nil {
				fmt.Println("no open room")
				continue
			}
			loaded, err := room.LoadMore(ctx)
			if err != nil {
				fmt.Printf("load failed: %v\n", err)
			} else if !loaded {
				fmt.Println("nothing more to load")
			} else {
				printMessages(room.Messages(), viewerID)
			}
		case "messages":
			if room == nil {
				fmt.Println("no open room")
				continue
			}
			printMessages(room.Messages(), viewerID)
		case "close":
			if room != nil {
				room.Close()
				room = nil
			}
		case "prefs":
			for key, val := range manager.Preferences() {
				fmt.Printf("%s = %s\n", key, val)
			}
		case "set":
			if len(fields) < 3 {
				fmt.Println("usage: set <key> <value>")
				continue
			}
			if _, err := manager.SetPreferences(models.Preferences{fields[1]: fields[2]}); err != nil {
				fmt.Printf("set failed: %v\n", err)
			}
		case "logout":
			if room != nil {
				room.Close()
				room = nil
			}
			manager.Clear()
			return
		case "quit", "exit":
			if room != nil {
				room.Close()
			}
			return
		default:
			fmt.Printf("unknown command %q\n", fields[0])
		}
	}
}

func printMessages(messages []models.ChatMessage, viewerID string) {
	for _, m := range messages {
		who := m.SenderID
		if m.SenderID == viewerID {
			who = "me"
		}
		text := m.Message
		if m.Discarded {
			text = "(discarded)"
		} else if m.Hidden {
			text = "(hidden)"
		}
		marker := ""
		if m.Pending {
			marker = " ..."
		}
		fmt.Printf("[%s] %s: %s%s\n", m.DateTimeSent.Local().Format("15:04"), who, text, marker)
	}
}
