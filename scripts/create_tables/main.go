package main

import (
	"log"
	"os"
	"strings"

	"github.com/gocql/gocql"
)

// Creates the streamfeed keyspace and tables. Retention is enforced
// per-row at write time (USING TTL), so no table-level TTL is set
// here.
func main() {
	hostsStr := os.Getenv("SCYLLA_HOSTS")
	if hostsStr == "" {
		hostsStr = "localhost:9042"
	}
	hosts := strings.Split(hostsStr, ",")

	cluster := gocql.NewCluster(hosts...)
	cluster.Consistency = gocql.Quorum
	session, err := cluster.CreateSession()
	if err != nil {
		log.Fatal(err)
	}
	defer session.Close()

	stmts := []string{
		`CREATE KEYSPACE IF NOT EXISTS streamfeed
			WITH REPLICATION = { 'class' : 'SimpleStrategy', 'replication_factor' : 1 }`,
		`CREATE TABLE IF NOT EXISTS streamfeed.messages (
			conversation_id text,
			id bigint,
			sender_id text,
			sender_name text,
			sender_handle text,
			sender_automated boolean,
			body text,
			reply_to_id bigint,
			reply_to_name text,
			reply_to_handle text,
			reply_to_preview text,
			created_at timestamp,
			expires_at timestamp,
			PRIMARY KEY (conversation_id, id)
		) WITH CLUSTERING ORDER BY (id DESC)`,
		`CREATE TABLE IF NOT EXISTS streamfeed.message_conversations (
			id bigint PRIMARY KEY,
			conversation_id text
		)`,
	}

	for _, stmt := range stmts {
		if err := session.Query(stmt).Exec(); err != nil {
			log.Fatal(err)
		}
	}

	log.Println("streamfeed keyspace and tables created successfully")
}
