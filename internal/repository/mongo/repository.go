package mongo

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"torrentsession/internal/domain"
)

type Repository struct {
	collection *mongo.Collection
	now        func() time.Time
}

type fileDoc struct {
	Path   string `bson:"path"`
	Length int64  `bson:"length"`
}

type torrentDoc struct {
	ID            string    `bson:"_id"`
	Name          string    `bson:"name"`
	Status        string    `bson:"status"`
	Magnet        string    `bson:"magnet,omitempty"`
	Metadata      []byte    `bson:"metadata,omitempty"`
	Files         []fileDoc `bson:"files"`
	TotalBytes    int64     `bson:"totalBytes"`
	DoneBytes     int64     `bson:"doneBytes"`
	UploadedBytes int64     `bson:"uploadedBytes"`
	Progress      float64   `bson:"progress"`
	CreatedAt     int64     `bson:"createdAt"`
	UpdatedAt     int64     `bson:"updatedAt"`
}

type torrentUpdateDoc struct {
	Name          string    `bson:"name"`
	Status        string    `bson:"status"`
	Magnet        string    `bson:"magnet,omitempty"`
	Metadata      []byte    `bson:"metadata,omitempty"`
	Files         []fileDoc `bson:"files"`
	TotalBytes    int64     `bson:"totalBytes"`
	DoneBytes     int64     `bson:"doneBytes"`
	UploadedBytes int64     `bson:"uploadedBytes"`
	Progress      float64   `bson:"progress"`
	UpdatedAt     int64     `bson:"updatedAt"`
}

func NewRepository(client *mongo.Client, dbName, collectionName string) *Repository {
	return &Repository{
		collection: client.Database(dbName).Collection(collectionName),
		now:        time.Now,
	}
}

func Connect(ctx context.Context, uri string, extra ...*options.ClientOptions) (*mongo.Client, error) {
	opts := append([]*options.ClientOptions{options.Client().ApplyURI(uri)}, extra...)
	client, err := mongo.Connect(ctx, opts...)
	if err != nil {
		return nil, err
	}
	return client, nil
}

func (r *Repository) EnsureIndexes(ctx context.Context) error {
	if r == nil || r.collection == nil {
		return nil
	}
	models := []mongo.IndexModel{
		{Keys: bson.D{{Key: "status", Value: 1}}},
		{Keys: bson.D{{Key: "createdAt", Value: 1}}},
		{Keys: bson.D{{Key: "updatedAt", Value: -1}}},
		{Keys: bson.D{{Key: "progress", Value: -1}}},
	}
	_, err := r.collection.Indexes().CreateMany(ctx, models)
	return err
}

func (r *Repository) Create(ctx context.Context, t domain.TorrentRecord) error {
	if err := t.Validate(); err != nil {
		return err
	}
	_, err := r.collection.InsertOne(ctx, toDoc(t))
	if err != nil && mongo.IsDuplicateKeyError(err) {
		return fmt.Errorf("%w: %s", domain.ErrDuplicateIdentifier, t.ID)
	}
	return err
}

func (r *Repository) Update(ctx context.Context, t domain.TorrentRecord) error {
	if err := t.Validate(); err != nil {
		return err
	}
	res, err := r.collection.UpdateOne(ctx, bson.M{"_id": string(t.ID)}, bson.M{"$set": toUpdateDoc(t)})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// UpdateProgress raises the byte counters and progress with $max so a late
// or replayed update never moves a record backwards.
func (r *Repository) UpdateProgress(ctx context.Context, id domain.TorrentID, update domain.ProgressUpdate) error {
	set := bson.M{"updatedAt": r.now().UTC().Unix()}
	if update.Status != "" {
		set["status"] = string(update.Status)
	}
	res, err := r.collection.UpdateOne(ctx, bson.M{"_id": string(id)}, progressUpdateDoc(update, set))
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func progressUpdateDoc(update domain.ProgressUpdate, set bson.M) bson.M {
	return bson.M{
		"$max": bson.M{
			"doneBytes":     update.DoneBytes,
			"uploadedBytes": update.UploadedBytes,
			"progress":      clampProgress(update.Progress),
		},
		"$set": set,
	}
}

func (r *Repository) Get(ctx context.Context, id domain.TorrentID) (domain.TorrentRecord, error) {
	var doc torrentDoc
	if err := r.collection.FindOne(ctx, bson.M{"_id": string(id)}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return domain.TorrentRecord{}, domain.ErrNotFound
		}
		return domain.TorrentRecord{}, err
	}
	return fromDoc(doc), nil
}

func (r *Repository) List(ctx context.Context, filter domain.TorrentFilter) ([]domain.TorrentRecord, error) {
	query, opts := listQuery(filter)
	cursor, err := r.collection.Find(ctx, query, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var docs []torrentDoc
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, err
	}
	return fromDocs(docs), nil
}

func listQuery(filter domain.TorrentFilter) (bson.M, *options.FindOptions) {
	query := bson.M{}
	if filter.Status != nil {
		query["status"] = string(*filter.Status)
	}
	if search := strings.TrimSpace(filter.Search); search != "" {
		query["name"] = bson.M{
			"$regex":   regexp.QuoteMeta(search),
			"$options": "i",
		}
	}

	field, ok := mongoSortField(strings.TrimSpace(filter.SortBy))
	if !ok {
		field = "updatedAt"
	}
	direction := -1
	if filter.SortOrder == domain.SortAsc {
		direction = 1
	}

	opts := options.Find().SetSort(bson.D{{Key: field, Value: direction}, {Key: "_id", Value: 1}})
	if filter.Offset > 0 {
		opts.SetSkip(int64(filter.Offset))
	}
	if filter.Limit > 0 {
		opts.SetLimit(int64(filter.Limit))
	}
	return query, opts
}

func (r *Repository) Delete(ctx context.Context, id domain.TorrentID) error {
	res, err := r.collection.DeleteOne(ctx, bson.M{"_id": string(id)})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func toFileDocs(files []domain.FileEntry) []fileDoc {
	out := make([]fileDoc, 0, len(files))
	for _, f := range files {
		out = append(out, fileDoc{Path: f.Path, Length: f.Length})
	}
	return out
}

func toDoc(t domain.TorrentRecord) torrentDoc {
	return torrentDoc{
		ID:            string(t.ID),
		Name:          t.Name,
		Status:        string(t.Status),
		Magnet:        t.Source.Magnet,
		Metadata:      t.Source.Metadata,
		Files:         toFileDocs(t.Files),
		TotalBytes:    t.TotalBytes,
		DoneBytes:     t.DoneBytes,
		UploadedBytes: t.UploadedBytes,
		Progress:      clampProgress(t.Progress),
		CreatedAt:     t.CreatedAt.Unix(),
		UpdatedAt:     t.UpdatedAt.Unix(),
	}
}

func toUpdateDoc(t domain.TorrentRecord) torrentUpdateDoc {
	return torrentUpdateDoc{
		Name:          t.Name,
		Status:        string(t.Status),
		Magnet:        t.Source.Magnet,
		Metadata:      t.Source.Metadata,
		Files:         toFileDocs(t.Files),
		TotalBytes:    t.TotalBytes,
		DoneBytes:     t.DoneBytes,
		UploadedBytes: t.UploadedBytes,
		Progress:      clampProgress(t.Progress),
		UpdatedAt:     t.UpdatedAt.Unix(),
	}
}

func fromDoc(doc torrentDoc) domain.TorrentRecord {
	files := make([]domain.FileEntry, 0, len(doc.Files))
	for _, f := range doc.Files {
		files = append(files, domain.FileEntry{Path: f.Path, Length: f.Length})
	}

	return domain.TorrentRecord{
		ID:            domain.TorrentID(doc.ID),
		Name:          doc.Name,
		Status:        domain.TorrentStatus(doc.Status),
		Source:        domain.TorrentSource{Magnet: doc.Magnet, Metadata: doc.Metadata},
		Files:         files,
		TotalBytes:    doc.TotalBytes,
		DoneBytes:     doc.DoneBytes,
		UploadedBytes: doc.UploadedBytes,
		Progress:      doc.Progress,
		CreatedAt:     timeFromUnix(doc.CreatedAt),
		UpdatedAt:     timeFromUnix(doc.UpdatedAt),
	}
}

func fromDocs(docs []torrentDoc) []domain.TorrentRecord {
	records := make([]domain.TorrentRecord, 0, len(docs))
	for _, doc := range docs {
		records = append(records, fromDoc(doc))
	}
	return records
}

func timeFromUnix(value int64) time.Time {
	return time.Unix(value, 0).UTC()
}

func clampProgress(p float64) float64 {
	if p < 0 {
		return 0
	}
	if p > 1 {
		return 1
	}
	return p
}

func mongoSortField(sortBy string) (string, bool) {
	switch sortBy {
	case "name":
		return "name", true
	case "createdAt":
		return "createdAt", true
	case "updatedAt":
		return "updatedAt", true
	case "totalBytes":
		return "totalBytes", true
	case "progress":
		return "progress", true
	default:
		return "", false
	}
}
