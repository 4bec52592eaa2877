package core

import (
	"log"
	"net"
	"net/mail"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type (
	serverConfig struct {
		Host                      string
		DebugHost                 string
		ShutdownTimeout           time.Duration
		JWTExpirationDelta        time.Duration
		JWTRefreshExpirationDelta time.Duration
		NonceLifetime             time.Duration
	}

	databaseConfig struct {
		Engine        string
		Host          string
		Port          string
		Name          string
		User          string
		Password      string
		AdminUser     string
		AdminPassword string
		DisableTLS    bool
	}

	redisConfig struct {
		Address  string
		Password string
		DB       int
	}

	qaConfig struct {
		AnswerRateLimit time.Duration
		AnswerMinLength int
		DefaultPerPage  int
		MaxPerPage      int
		ExcerptWords    int
	}

	// NotificationsConfig is the raw notification settings as read from the environment.
	NotificationsConfig struct {
		FromEmail                   string
		FromName                    string
		CcEmails                    []string
		InstructorNotificationEmail string
		InstructorEmail             string
		Templates                   map[string]string
	}

	Config struct {
		AppName          string
		Debug            bool
		TestMode         bool
		Env              string
		Build            string
		WorkDir          string
		SecretKey        string
		FrontendBaseURL  string
		DefaultFromEmail mail.Address
		SendgridApiKey   string
		RollbarToken     string
		Server           serverConfig
		Database         databaseConfig
		Redis            redisConfig
		QA               qaConfig
		Notifications    NotificationsConfig
	}
)

// NotificationTemplateKeys lists the configurable notification templates.
var NotificationTemplateKeys = []string{
	"new_question",
	"question_approved",
	"question_was_approved",
	"new_answer",
	"answer_posted",
}

func (dbc databaseConfig) Address() string {
	return net.JoinHostPort(dbc.Host, dbc.Port)
}

func NewConfig() *Config {
	conf := viper.New()

	// defaults
	conf.SetTypeByDefaultValue(true)
	conf.SetDefault("appName", "Masomo")
	conf.SetDefault("debug", true)
	conf.SetDefault("build", "dev")
	conf.SetDefault("secretKey", "poq5-wer)enb$+57=dz&uoxh2(h!x)#*c2(#yg4h^$cegm2emy")
	conf.SetDefault("frontendBaseURL", "http://localhost:3000")
	conf.SetDefault("defaultFromEmail", "noreply@localhost")
	conf.SetDefault("sendgridApiKey", "")
	conf.SetDefault("rollbarToken", "")

	conf.SetDefault("server.host", "0.0.0.0:8000")
	conf.SetDefault("server.debugHost", "0.0.0.0:4000")
	conf.SetDefault("server.shutdownTimeout", 5*time.Second)
	conf.SetDefault("server.jwtExpirationDelta", 7*24*time.Hour)
	conf.SetDefault("server.jwtRefreshExpirationDelta", 4*time.Hour)
	conf.SetDefault("server.nonceLifetime", 24*time.Hour)

	conf.SetDefault("database.engine", "postgres")
	conf.SetDefault("database.host", "localhost")
	conf.SetDefault("database.port", "5432")
	conf.SetDefault("database.name", "masomo_qa")
	conf.SetDefault("database.user", "postgres")
	conf.SetDefault("database.password", "")
	conf.SetDefault("database.adminUser", "")
	conf.SetDefault("database.adminPassword", "")
	conf.SetDefault("database.disableTLS", true)

	conf.SetDefault("redis.address", "")
	conf.SetDefault("redis.password", "")
	conf.SetDefault("redis.db", 0)

	conf.SetDefault("qa.answerRateLimit", 5*time.Second)
	conf.SetDefault("qa.answerMinLength", 10)
	conf.SetDefault("qa.defaultPerPage", 2)
	conf.SetDefault("qa.maxPerPage", 50)
	conf.SetDefault("qa.excerptWords", 50)

	conf.SetDefault("notifications.fromEmail", "")
	conf.SetDefault("notifications.fromName", "")
	conf.SetDefault("notifications.ccEmails", "")
	conf.SetDefault("notifications.instructorNotificationEmail", "")
	conf.SetDefault("notifications.instructorEmail", "")
	for _, key := range NotificationTemplateKeys {
		conf.SetDefault("notifications.templates."+key, DefaultNotificationTemplates[key])
	}

	env := strings.ToUpper(os.Getenv("ENV")) // DEV (local; default), TEST, QA, PROD
	switch env {
	case "":
		env = "DEV"
	case "TEST":
		conf.SetDefault("testMode", true)
	}
	conf.SetEnvPrefix(env)

	// load .env if it exists (ignore if it does not)
	wd := Getwd()
	dotEnvPath := filepath.Join(wd, "config", ".env."+strings.ToLower(env))
	if _, err := os.Stat(dotEnvPath); err == nil {
		if err := godotenv.Load(dotEnvPath); err != nil {
			log.Fatalf("config.godotenv(%s): %v", dotEnvPath, err)
		}
	} else if !os.IsNotExist(err) {
		log.Fatalf("config.os.Stat(%s): %v", dotEnvPath, err)
	}
	conf.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	conf.AllowEmptyEnv(true) // an empty template disables its notification
	conf.AutomaticEnv()

	templates := make(map[string]string, len(NotificationTemplateKeys))
	for _, key := range NotificationTemplateKeys {
		templates[key] = conf.GetString("notifications.templates." + key)
	}

	return &Config{
		AppName:         conf.GetString("appName"),
		Debug:           conf.GetBool("debug"),
		TestMode:        conf.GetBool("testMode"),
		Env:             env,
		Build:           conf.GetString("build"),
		WorkDir:         wd,
		SecretKey:       conf.GetString("secretKey"),
		FrontendBaseURL: strings.TrimRight(conf.GetString("frontendBaseURL"), "/"),
		DefaultFromEmail: mail.Address{
			Name:    conf.GetString("appName"),
			Address: conf.GetString("defaultFromEmail"),
		},
		SendgridApiKey: conf.GetString("sendgridApiKey"),
		RollbarToken:   conf.GetString("rollbarToken"),
		Server: serverConfig{
			Host:                      conf.GetString("server.host"),
			DebugHost:                 conf.GetString("server.debugHost"),
			ShutdownTimeout:           conf.GetDuration("server.shutdownTimeout"),
			JWTExpirationDelta:        conf.GetDuration("server.jwtExpirationDelta"),
			JWTRefreshExpirationDelta: conf.GetDuration("server.jwtRefreshExpirationDelta"),
			NonceLifetime:             conf.GetDuration("server.nonceLifetime"),
		},
		Database: databaseConfig{
			Engine:        conf.GetString("database.engine"),
			Host:          conf.GetString("database.host"),
			Port:          conf.GetString("database.port"),
			Name:          conf.GetString("database.name"),
			User:          conf.GetString("database.user"),
			Password:      conf.GetString("database.password"),
			AdminUser:     conf.GetString("database.adminUser"),
			AdminPassword: conf.GetString("database.adminPassword"),
			DisableTLS:    conf.GetBool("database.disableTLS"),
		},
		Redis: redisConfig{
			Address:  conf.GetString("redis.address"),
			Password: conf.GetString("redis.password"),
			DB:       conf.GetInt("redis.db"),
		},
		QA: qaConfig{
			AnswerRateLimit: conf.GetDuration("qa.answerRateLimit"),
			AnswerMinLength: conf.GetInt("qa.answerMinLength"),
			DefaultPerPage:  conf.GetInt("qa.defaultPerPage"),
			MaxPerPage:      conf.GetInt("qa.maxPerPage"),
			ExcerptWords:    conf.GetInt("qa.excerptWords"),
		},
		Notifications: NotificationsConfig{
			FromEmail:                   conf.GetString("notifications.fromEmail"),
			FromName:                    conf.GetString("notifications.fromName"),
			CcEmails:                    SplitList(conf.GetString("notifications.ccEmails")),
			InstructorNotificationEmail: conf.GetString("notifications.instructorNotificationEmail"),
			InstructorEmail:             conf.GetString("notifications.instructorEmail"),
			Templates:                   templates,
		},
	}
}

// DefaultNotificationTemplates are used when no template is configured for an event.
var DefaultNotificationTemplates = map[string]string{
	"new_question": "A new question has been submitted on {site_name}\n\n" +
		"Title: {question_title}\nAuthor: {question_author}\nContent: {question_content}\n\n" +
		"Review the question here: {question_link}",
	"question_approved": "Hello {user_name},\n\n" +
		"Your question \"{question_title}\" has been approved and is now visible on the site.\n\n" +
		"You can view it here: {question_link}\n\nBest regards,\n{site_name}",
	"question_was_approved": "A question has been approved:\n\n" +
		"Title: {question_title}\nApproved for: {user_name}\n\nView it here: {question_link}",
	"new_answer": "Hello {user_name},\n\n" +
		"A new answer has been posted to your question \"{question_title}\".\n\n" +
		"Answer by {answer_author}:\n{answer_content}\n\n" +
		"View the answer here: {question_link}\n\nBest regards,\n{site_name}",
	"answer_posted": "A new answer has been posted:\n\n" +
		"Question: {question_title}\nAnswered by: {answer_author}\nAnswer: {answer_excerpt}\n\n" +
		"View it here: {question_link}",
}
