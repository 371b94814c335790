package driver

var IndexQueries = []string{
	"CREATE INDEX ON :Story(id);",
	"CREATE INDEX ON :Story(owner_id);",
	"CREATE INDEX ON :Chapter(story_id);",
	"CREATE INDEX ON :TimelineEvent(story_id);",
	"CREATE INDEX ON :User(id);",
	"CREATE INDEX ON :User(email);",
	"CREATE INDEX ON :User(reset_token_hash);",
}

const (
	CreateStoryQuery = `
		OPTIONAL MATCH (existing:Story {id: $id})
		WITH existing WHERE existing IS NULL
		CREATE (s:Story {id: $id})
		SET s.owner_id = $owner_id,
			s.title = $title,
			s.genre = $genre,
			s.premise = $premise,
			s.structure = $structure,
			s.act_count = $act_count,
			s.schema_version = $schema_version,
			s.characters_json = $characters_json,
			s.world_rules_json = $world_rules_json,
			s.created_at = $created_at,
			s.updated_at = $updated_at
		RETURN s.id AS id
	`

	GetStoryQuery = `
		MATCH (s:Story {id: $id})
		RETURN s.id AS id,
			s.owner_id AS owner_id,
			s.title AS title,
			s.genre AS genre,
			s.premise AS premise,
			s.structure AS structure,
			s.act_count AS act_count,
			s.schema_version AS schema_version,
			s.characters_json AS characters_json,
			s.world_rules_json AS world_rules_json,
			s.created_at AS created_at,
			s.updated_at AS updated_at
	`

	GetChaptersQuery = `
		MATCH (:Story {id: $id})-[:HAS_CHAPTER]->(c:Chapter)
		RETURN c.idx AS idx,
			c.title AS title,
			c.content AS content,
			c.act AS act,
			c.snapshot_json AS snapshot_json,
			c.created_at AS created_at
		ORDER BY c.idx
	`

	GetTimelineQuery = `
		MATCH (:Story {id: $id})-[:HAS_EVENT]->(e:TimelineEvent)
		RETURN e.chapter_index AS chapter_index,
			e.summary AS summary,
			e.occurred_at AS occurred_at
		ORDER BY e.chapter_index
	`

	ListStoriesQuery = `
		MATCH (s:Story {owner_id: $owner_id})
		OPTIONAL MATCH (s)-[:HAS_CHAPTER]->(c:Chapter)
		WITH s, count(c) AS chapter_count
		RETURN s.id AS id,
			s.title AS title,
			s.genre AS genre,
			s.structure AS structure,
			s.updated_at AS updated_at,
			chapter_count
		ORDER BY s.updated_at DESC
	`

	// CommitChapterQuery appends only while the history length still equals
	// $idx. No record back means the story is missing or the check failed.
	CommitChapterQuery = `
		MATCH (s:Story {id: $story_id})
		OPTIONAL MATCH (s)-[:HAS_CHAPTER]->(existing:Chapter)
		WITH s, count(existing) AS n
		WHERE n = $idx
		CREATE (s)-[:HAS_CHAPTER]->(c:Chapter {
			story_id: $story_id,
			idx: $idx,
			title: $title,
			content: $content,
			act: $act,
			snapshot_json: $snapshot_json,
			created_at: $created_at
		})
		CREATE (s)-[:HAS_EVENT]->(e:TimelineEvent {
			story_id: $story_id,
			chapter_index: $event_chapter_index,
			summary: $event_summary,
			occurred_at: $event_occurred_at
		})
		SET s.updated_at = $updated_at
		RETURN n
	`

	CountChaptersQuery = `
		MATCH (s:Story {id: $story_id})
		OPTIONAL MATCH (s)-[:HAS_CHAPTER]->(c:Chapter)
		RETURN count(c) AS n
	`

	CreateUserQuery = `
		OPTIONAL MATCH (existing:User {email: $email})
		WITH existing WHERE existing IS NULL
		CREATE (u:User {id: $id, email: $email, password_hash: $password_hash, created_at: $created_at})
		RETURN u.id AS id
	`

	GetUserByIDQuery = `
		MATCH (u:User {id: $id})
		RETURN u.id AS id, u.email AS email, u.password_hash AS password_hash, u.created_at AS created_at
	`

	GetUserByEmailQuery = `
		MATCH (u:User {email: $email})
		RETURN u.id AS id, u.email AS email, u.password_hash AS password_hash, u.created_at AS created_at
	`

	SetResetTokenQuery = `
		MATCH (u:User {id: $id})
		SET u.reset_token_hash = $token_hash, u.reset_expires_at = $expires_at
		RETURN u.id AS id
	`

	ResetPasswordQuery = `
		MATCH (u:User {reset_token_hash: $token_hash})
		WHERE u.reset_expires_at > $now
		SET u.password_hash = $password_hash
		REMOVE u.reset_token_hash, u.reset_expires_at
		RETURN u.id AS id
	`
)
