package thread

import (
	"sort"
	"strings"

	"github.com/sujalbistaa/askgo/internal/config"
	"github.com/sujalbistaa/askgo/internal/models"
)

// PostData is the aggregated view of one thread: the question, the
// ordered answers with comments attached, an author map and the ordered
// ids of publicly published answers.
type PostData struct {
	Question           *models.Post
	Answers            []*models.Post
	PostAuthors        map[uint]uint
	PublishedAnswerIDs []uint
}

var orderBySort = map[string]string{
	config.SortLatest: "added_at DESC",
	config.SortOldest: "added_at ASC",
	config.SortVotes:  "points DESC",
}

// orderClause maps a sort method to SQL ordering. When the requested
// method differs from the deployment default, the default is appended as
// a secondary tiebreak to keep the discussion order stable.
func (s *Service) orderClause(sortMethod string) string {
	defaultOrder := orderBySort[s.settings.DefaultSortMethod]
	order, ok := orderBySort[sortMethod]
	if !ok {
		order = defaultOrder
	}
	if order != defaultOrder {
		return order + ", " + defaultOrder
	}
	return order
}

// PostData aggregates the thread's approved posts under the given sort
// method. A non-empty groupIDs set restricts posts to those shared with
// the groups. Deleted answers and comments are dropped; a deleted
// question passes through so it can be shown with a notice.
func (s *Service) PostData(thread *models.Thread, sortMethod string, groupIDs []uint) (*PostData, error) {
	if sortMethod == "" {
		sortMethod = s.settings.DefaultSortMethod
	}
	order := s.orderClause(sortMethod)

	q := s.db.Model(&models.Post{}).
		Where("posts.thread_id = ? AND posts.approved = ?", thread.ID, true)
	if len(groupIDs) > 0 {
		q = q.Joins("JOIN post_groups ON post_groups.post_id = posts.id").
			Where("post_groups.group_id IN ?", groupIDs)
		if len(groupIDs) > 1 {
			// important for >1 group
			q = q.Distinct("posts.*")
		}
	}

	var posts []*models.Post
	if err := q.Order(order).Find(&posts).Error; err != nil {
		return nil, err
	}

	data := &PostData{PostAuthors: make(map[uint]uint)}
	postMap := make(map[uint]*models.Post)
	commentMap := make(map[uint][]*models.Post)

	for _, post := range posts {
		switch post.PostType {
		case models.PostTypeQuestion, models.PostTypeAnswer, models.PostTypeComment:
		default:
			continue
		}
		// pass through only deleted question posts
		if post.Deleted && post.PostType != models.PostTypeQuestion {
			continue
		}

		data.PostAuthors[post.ID] = post.AuthorID

		switch post.PostType {
		case models.PostTypeAnswer:
			data.Answers = append(data.Answers, post)
			postMap[post.ID] = post
		case models.PostTypeComment:
			if post.ParentID != nil {
				commentMap[*post.ParentID] = append(commentMap[*post.ParentID], post)
			}
		case models.PostTypeQuestion:
			if data.Question != nil {
				return nil, models.Consistencyf("thread %d has more than one question post", thread.ID)
			}
			data.Question = post
			postMap[post.ID] = post
		}
	}

	for parentID, comments := range commentMap {
		sort.SliceStable(comments, func(i, j int) bool {
			return comments[i].AddedAt.Before(comments[j].AddedAt)
		})
		if parent, ok := postMap[parentID]; ok {
			parent.Comments = comments
		}
		// comments to deleted answers are dropped with their parent
	}

	published, err := s.publishedAnswerIDs(thread.ID, order)
	if err != nil {
		return nil, err
	}
	data.PublishedAnswerIDs = published

	// Publicly published answers go first. The list arrives reversed, so
	// walking it forward leaves the best-ranked published answer at the
	// very front. Runs before the accepted promotion so an accepted
	// answer always ends up at index 0.
	for _, id := range published {
		if _, ok := postMap[id]; ok {
			moveToFront(&data.Answers, id)
		}
	}

	if s.settings.ShowAcceptedAnswerFirst && thread.AcceptedAnswerID != nil {
		if accepted, ok := postMap[*thread.AcceptedAnswerID]; ok && !accepted.Deleted {
			moveToFront(&data.Answers, accepted.ID)
		}
	}

	return data, nil
}

// publishedAnswerIDs lists the thread's live answers that carry no group
// shadow, in the given sort order, reversed so the caller can walk it
// front-insertion style.
func (s *Service) publishedAnswerIDs(threadID uint, order string) ([]uint, error) {
	var ids []uint
	err := s.db.Model(&models.Post{}).
		Where("posts.thread_id = ? AND posts.post_type = ? AND posts.deleted = ? AND posts.approved = ?",
			threadID, models.PostTypeAnswer, false, true).
		Where("NOT EXISTS (SELECT 1 FROM post_groups WHERE post_groups.post_id = posts.id)").
		Order(order).
		Pluck("posts.id", &ids).Error
	if err != nil {
		return nil, err
	}
	for i, j := 0, len(ids)-1; i < j; i, j = i+1, j-1 {
		ids[i], ids[j] = ids[j], ids[i]
	}
	return ids, nil
}

func moveToFront(answers *[]*models.Post, id uint) {
	list := *answers
	for i, a := range list {
		if a.ID == id {
			copy(list[1:i+1], list[:i])
			list[0] = a
			return
		}
	}
}

// QuestionPost returns the thread's single question post. Zero rows is
// ErrNotFound; more than one is a ConsistencyError.
func (s *Service) QuestionPost(threadID uint) (*models.Post, error) {
	var questions []*models.Post
	err := s.db.Where("thread_id = ? AND post_type = ?", threadID, models.PostTypeQuestion).
		Find(&questions).Error
	if err != nil {
		return nil, err
	}
	switch len(questions) {
	case 0:
		return nil, models.ErrNotFound
	case 1:
		return questions[0], nil
	default:
		return nil, models.Consistencyf("thread %d has %d question posts", threadID, len(questions))
	}
}

// TagNameList splits the thread's denormalized tag string.
func TagNameList(t *models.Thread) []string {
	return strings.Fields(t.TagNames)
}
