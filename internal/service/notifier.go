package service

// 变更事件类型
const (
	EventCategoryCreated = "category.created"
	EventCategoryUpdated = "category.updated"
	EventCategoryDeleted = "category.deleted"
	EventCategorySorted  = "category.sorted"
	EventSiteCreated     = "site.created"
	EventSiteUpdated     = "site.updated"
	EventSiteDeleted     = "site.deleted"
	EventSiteSorted      = "site.sorted"
)

// Notifier 推送数据变更事件
type Notifier interface {
	Notify(eventType string, data any)
}

type noopNotifier struct{}

func (noopNotifier) Notify(string, any) {}

func notifierOrNoop(n Notifier) Notifier {
	if n == nil {
		return noopNotifier{}
	}
	return n
}
